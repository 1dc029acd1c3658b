// Copyright (C) 2026 V2X Hub contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package plugin

import "sync"

// executor is the per-plugin task executor: at
// least two workers, so that a blocking main loop cannot starve
// asynchronous broker callbacks. A fixed goroutine
// count drains a shared channel, joined via sync.WaitGroup on
// shutdown.
type executor struct {
	jobs chan func()
	wg   sync.WaitGroup
}

func newExecutor(workers int) *executor {
	if workers < 2 {
		workers = 2
	}
	e := &executor{jobs: make(chan func(), 256)}
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer e.wg.Done()
			for job := range e.jobs {
				job()
			}
		}()
	}
	return e
}

func (e *executor) submit(job func()) {
	e.jobs <- job
}

// quiesce closes the job queue and waits for every worker to drain it.
func (e *executor) quiesce() {
	close(e.jobs)
	e.wg.Wait()
}
