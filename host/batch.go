package host

// Notifier is the slice of the host's change-notification machinery the
// scripting core needs: the ability to pause event delivery while a script
// performs a burst of data-model mutations.
type Notifier interface {
	BeginBatch()
	EndBatch()
}

// RunBatched runs fn with host change notifications suppressed. The end of
// the bracket is guaranteed on every exit path, including panics inside fn.
// Brackets nest; notifications resume when the outermost bracket ends.
func (b *Bridge) RunBatched(fn func() error) error {
	b.beginBatch()
	defer b.endBatch()
	return fn()
}

func (b *Bridge) beginBatch() {
	b.mu.Lock()
	b.batches++
	first := b.batches == 1
	b.mu.Unlock()
	if first && b.notifier != nil {
		b.notifier.BeginBatch()
	}
}

func (b *Bridge) endBatch() {
	b.mu.Lock()
	if b.batches > 0 {
		b.batches--
	}
	last := b.batches == 0
	b.mu.Unlock()
	if last && b.notifier != nil {
		b.notifier.EndBatch()
	}
}
