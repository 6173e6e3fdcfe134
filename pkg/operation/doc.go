// Copyright 2025 walteh LLC
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

/*
Package operation runs batches of file transfers.

┌─────────────────────────────────────────────────────────────┐
│                       BATCH LIFECYCLE                       │
├─────────────────────────────────────────────────────────────┤
│ Planning -> Measuring -> Executing -> ResolvingConflicts    │
│                                     -> Finished             │
│                                                             │
│ Finished as: Completed | CancelledEarly |                   │
│              CompletedWithFailures                          │
└─────────────────────────────────────────────────────────────┘

🎯 Purpose:
- Copy, move, delete or trash one or more source paths as one batch
- Report progress as bytes (copy/move) or items (delete/trash)
- Defer destination conflicts and resolve them after the main pass
- Stop cleanly when the batch's cancellation token fires

🔄 Flow:
1. The request is validated, nothing starts for an invalid one
2. usage.Planner measures every source to fix the totals
3. Sources are processed in order, depth first, one item at a time
4. Each native call runs on its own goroutine and streams (done, total)
   back over a channel; only the delta per item is added to the batch
5. Conflicts recorded in step 3 are decided by a conflict.Resolver
6. Move removes the source directories it emptied

⚡ Suspension points:
- the native item call
- the pause gate (checked between items)
- the conflict prompt

🤝 Collaborators:
- native.Platform: the per-item filesystem primitives
- cancel.Registry: tokens addressed by id from other goroutines
- conflict.Prompter: asks how to handle an existing destination
- Observer: receives phase, item and progress events

🔍 Example:

	exec := operation.NewExecutor(platform, registry,
		operation.WithPrompter(conflict.Policy(conflict.Skip)),
		operation.WithObserver(status.NewReporter()),
	)
	res, err := exec.Run(ctx, operation.Request{
		Operation:   operation.Copy,
		Sources:     []string{"/home/me/photos"},
		Destination: "/mnt/backup",
	})
*/
package operation
