// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package optimizer

import "errors"

var (
	// ErrShapeMismatch is returned when buffer lengths disagree with each
	// other or with the shape parameters of a call.
	ErrShapeMismatch = errors.New("optimizer: shape mismatch")

	// ErrEmptyInput is returned by reductions that have no defined value
	// for an empty input (max, min).
	ErrEmptyInput = errors.New("optimizer: empty input")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("optimizer: closed")

	// ErrUnknownStrategy is returned when parsing an unrecognized
	// strategy name.
	ErrUnknownStrategy = errors.New("optimizer: unknown strategy")

	// ErrUnknownOp is returned for an operation name the dispatch table
	// does not hold.
	ErrUnknownOp = errors.New("optimizer: unknown operation")

	// ErrInvalidConfig wraps every Config.Validate failure.
	ErrInvalidConfig = errors.New("optimizer: invalid config")
)
