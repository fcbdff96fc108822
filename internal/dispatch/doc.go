// Package dispatch fans a stage's tasks out to one worker per instance and
// streams their results back as they complete.
//
// Workers are independent. A failing task never cancels its siblings and
// nothing is retried automatically. Callers build stage barriers by
// draining every completion of one stage before dispatching the next.
package dispatch
