// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package diagnostics

import (
	"sync"
	"time"
)

// Unraised is one exception recorded by an observer whose Result() was
// never subsequently read by the caller.
type Unraised struct {
	ObserverName string
	Err          error
	At           time.Time
}

var (
	unraisedMu sync.Mutex
	unraised   = map[any]Unraised{}
)

// RecordUnraised registers an exception against id (typically the concrete
// observer pointer) the moment observer.Base.SetException stores it. It is
// provisional: MarkRead removes the entry once someone reads it back out
// via Result().
func RecordUnraised(id any, observerName string, err error, at time.Time) {
	unraisedMu.Lock()
	defer unraisedMu.Unlock()
	unraised[id] = Unraised{ObserverName: observerName, Err: err, At: at}
}

// MarkRead removes id's entry, if any - called by observer.Base.Result once
// the stored exception has been handed back to a caller.
func MarkRead(id any) {
	unraisedMu.Lock()
	defer unraisedMu.Unlock()
	delete(unraised, id)
}

// DrainUnraised returns and clears every exception still unread. Test
// harnesses call this between cases to assert the registry is empty,
// mirroring moler's ConnectionObserver.get_unraised_exceptions(remove=True).
func DrainUnraised() []Unraised {
	unraisedMu.Lock()
	defer unraisedMu.Unlock()

	out := make([]Unraised, 0, len(unraised))
	for _, u := range unraised {
		out = append(out, u)
	}
	unraised = map[any]Unraised{}
	return out
}
