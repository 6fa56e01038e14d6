// Copyright 2025 Poiesic Systems
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

package ingestion

import (
	"context"
	"log/slog"
	"time"
)

// retry runs op up to attempts times, doubling the wait between tries
// starting from base. Waits honor ctx cancellation. Returns the error
// from the final try when every attempt fails.
func retry(ctx context.Context, attempts int, base time.Duration, op func() error) error {
	if attempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var err error
	for try := 0; try < attempts; try++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err = op(); err == nil {
			if try > 0 {
				slog.Debug("retry succeeded", "try", try+1)
			}
			return nil
		}

		if try == attempts-1 {
			break
		}
		slog.Debug("retrying after failure", "try", try+1, "attempts", attempts, "error", err)

		wait := base << try
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}
