/*
Package status turns batch events into log records and short status lines.

	+-------------+      +-------------+
	|  operation  | ---> |  Reporter   | ---> zerolog
	|  (events)   |      | (throttle)  |
	+-------------+      +------+------+
	                            |
	                     +------+------+
	                     |  Formatter  |
	                     +-------------+

🎯 Purpose:
- Log phase changes, item outcomes and batch summaries
- Throttle progress records so large batches do not flood the log
- Keep presentation (FileFormatter) apart from event handling

🔄 Flow:
1. The executor emits an operation.Event on the batch goroutine
2. Reporter updates its per-batch tally
3. Outcomes and summaries are logged at once, progress at most every
   Interval or every Step percent

🔍 Example:

	reporter := status.NewReporter(status.WithInterval(time.Second))
	exec := operation.NewExecutor(platform, registry, operation.WithObserver(reporter))
*/
package status
