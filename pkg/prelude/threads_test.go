package prelude

import "testing"

func TestMutexLockUnlockRoundTrips(t *testing.T) {
	runModule(t, `
		let m = mutex.new();
		m.lock();
		m.unlock();
	`)
}

func TestMutexTryLockReportsAvailability(t *testing.T) {
	m := runModule(t, `
		let m = mutex.new();
		let got = m.try_lock();
		assert(got);
		m.unlock();
	`)
	_ = m
}

func TestThreadSpawnJoinReturnsResult(t *testing.T) {
	runModule(t, `
		let t = thread.spawn(fn() { return 1 + 1; });
		let r = t.join();
		assert(r == 2);
	`)
}

func TestThreadSpawnJoinPropagatesError(t *testing.T) {
	err := runModuleExpectErr(t, `
		let t = thread.spawn(fn() { assert(false); });
		t.join();
	`)
	if err == nil {
		t.Fatalf("expected join() to surface the spawned function's error")
	}
}
