package worker

import "go.uber.org/zap"

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
}

func newWorker(id int, pool *jobChannelPool) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	w.pool.wg.Add(1)
	go func() {
		defer w.pool.wg.Done()
		defer w.pool.retire(w.jobChannel)
		for {
			w.pool.Release(w.jobChannel)
			select {
			case job := <-w.jobChannel:
				if job.Type == jobStop {
					return
				}
				if err := job.execute(); err != nil {
					w.pool.logger.Debug("worker job failed",
						zap.Int("worker", w.id),
						zap.String("user", job.UserKey),
						zap.Error(err))
				}
			case <-w.pool.quit:
				return
			}
		}
	}()
}
