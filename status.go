// Copyright (c) 2020 The Bluge Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// 		http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queryproc

// Status is the outcome of a single Stage.Next call.
type Status int

const (
	// StatusOK means res was populated with a valid result.
	StatusOK Status = iota
	// StatusEOF means the stage has nothing further to offer.
	StatusEOF
	// StatusTimedOut means the query's deadline has passed.
	StatusTimedOut
	// StatusError means a fatal, pipeline-aborting error occurred;
	// the error itself is recorded on PipelineContext.Err.
	StatusError
	// StatusQueued is reserved for the top-K sorter's accumulate phase
	// and must never be observed by a stage downstream of the sorter.
	// The Sorter in package collector loops internally while
	// accumulating and does not return it.
	StatusQueued
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusEOF:
		return "EOF"
	case StatusTimedOut:
		return "TIMEDOUT"
	case StatusError:
		return "ERROR"
	case StatusQueued:
		return "QUEUED"
	default:
		return "UNKNOWN"
	}
}

// TimeoutPolicy controls how the top-K sorter (and the buffer-and-lock
// stage) react to a StatusTimedOut from upstream during their accumulate
// phase. It is part of PipelineContext, not a mutable global (§9 design
// note: "Mutable global configuration").
type TimeoutPolicy int

const (
	// TimeoutReturn yields whatever partial results were accumulated
	// before the deadline, as if upstream had reported EOF.
	TimeoutReturn TimeoutPolicy = iota
	// TimeoutFail propagates StatusTimedOut and discards accumulated
	// results.
	TimeoutFail
)
