// Package events defines the allocation events emitted on the event bus.
//
// Every event is a RunEvent whose Type tells subscribers what happened:
//   - RunStarted: a job left the queue
//   - RunCompleted: teams were computed for a job
//   - RunFailed: a job could not produce teams
//   - StationMoved: a station was moved between teams of a finished job
//   - TeamLocked: a team lock flag changed
package events
