package worker

// reconcileOperations folds verified but unmined transactions back into
// the mempool on a timer.
func (w *Worker) reconcileOperations() {
	w.evHandler("worker: reconcileOperations: G started")
	defer w.evHandler("worker: reconcileOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				if pooled, err := w.state.Reconcile(); err != nil {
					w.evHandler("worker: reconcileOperations: ERROR: %s", err)
				} else if pooled > 0 {
					w.evHandler("worker: reconcileOperations: pooled[%d]", pooled)
				}
			}
		case <-w.shut:
			w.evHandler("worker: reconcileOperations: received shut signal")
			return
		}
	}
}
