package gitstore

// Windows repositories get no cross-process lock; transactions are still serialized per handle.
type repoLock struct{}

func acquireLock(path string) (*repoLock, error) {
	return nil, nil
}

func (l *repoLock) release() error {
	return nil
}
