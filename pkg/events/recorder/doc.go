// Package recorder writes failover events to an events.Store off the
// failover service's goroutines.
//
//	rec := recorder.NewRecorder(store, &recorder.Config{AsyncBuffer: 1024})
//	svc.AddEventSink(rec)
//	defer rec.Close()
package recorder
