package rungroup

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRun_NoActors(t *testing.T) {
	t.Parallel()

	testRunGroup := NewRunGroup()
	require.NoError(t, testRunGroup.Run())
}

func TestRun_MultipleActors(t *testing.T) {
	t.Parallel()

	testRunGroup := NewRunGroup()

	groupReceivedInterrupts := make(chan struct{}, 3)

	// First actor waits for interrupt and alerts groupReceivedInterrupts when it's interrupted
	firstActorInterrupt := make(chan struct{})
	testRunGroup.Add("firstActor", func() error {
		<-firstActorInterrupt
		return nil
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
		firstActorInterrupt <- struct{}{}
	})

	// Second actor returns error on `execute`, and then alerts groupReceivedInterrupts when it's interrupted
	expectedError := errors.New("test error from interruptingActor")
	testRunGroup.Add("interruptingActor", func() error {
		time.Sleep(1 * time.Second)
		return expectedError
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
	})

	// Third actor waits for interrupt and alerts groupReceivedInterrupts when it's interrupted
	anotherActorInterrupt := make(chan struct{})
	testRunGroup.Add("anotherActor", func() error {
		<-anotherActorInterrupt
		return nil
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
		anotherActorInterrupt <- struct{}{}
	})

	runCompleted := make(chan struct{})
	go func() {
		err := testRunGroup.Run()
		runCompleted <- struct{}{}
		require.Error(t, err)
	}()

	// 1 second before interrupt, waiting for interrupt, and waiting for execute return, plus a little buffer
	runDuration := 1*time.Second + InterruptTimeout + executeReturnTimeout + 1*time.Second
	interruptCheckTimer := time.NewTicker(runDuration)
	defer interruptCheckTimer.Stop()

	receivedInterrupts := 0
	gotRunCompleted := false
	for {
		if gotRunCompleted {
			break
		}

		select {
		case <-groupReceivedInterrupts:
			receivedInterrupts += 1
		case <-runCompleted:
			gotRunCompleted = true
		case <-interruptCheckTimer.C:
			t.Errorf("did not receive expected interrupts within reasonable time, got %d", receivedInterrupts)
			t.FailNow()
		}
	}

	require.True(t, gotRunCompleted, "rungroup.Run did not terminate within time limit")

	// Run returning races with the final interrupt sends into the same
	// select, so pick up whatever is still buffered before counting
	for drained := false; !drained; {
		select {
		case <-groupReceivedInterrupts:
			receivedInterrupts += 1
		default:
			drained = true
		}
	}

	require.Equal(t, 3, receivedInterrupts)
}

func TestRun_MultipleActors_InterruptTimeout(t *testing.T) {
	t.Parallel()

	testRunGroup := NewRunGroup()

	groupReceivedInterrupts := make(chan struct{}, 3)

	// First actor waits for interrupt and alerts groupReceivedInterrupts when it's interrupted
	firstActorInterrupt := make(chan struct{})
	testRunGroup.Add("firstActor", func() error {
		<-firstActorInterrupt
		return nil
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
		firstActorInterrupt <- struct{}{}
	})

	// Second actor returns error on `execute`, and then alerts groupReceivedInterrupts when it's interrupted
	expectedError := errors.New("test error from interruptingActor")
	testRunGroup.Add("interruptingActor", func() error {
		time.Sleep(1 * time.Second)
		return expectedError
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
	})

	// Third actor blocks in interrupt for longer than the interrupt timeout
	blockingActorInterrupt := make(chan struct{})
	testRunGroup.Add("blockingActor", func() error {
		<-blockingActorInterrupt
		return nil
	}, func(error) {
		time.Sleep(4 * InterruptTimeout)
		groupReceivedInterrupts <- struct{}{}
		blockingActorInterrupt <- struct{}{}
	})

	runCompleted := make(chan struct{})
	go func() {
		err := testRunGroup.Run()
		require.Error(t, err)
		runCompleted <- struct{}{}
	}()

	// 1 second before interrupt, waiting for interrupt, and waiting for execute return, plus a little buffer
	runDuration := 1*time.Second + InterruptTimeout + executeReturnTimeout + 1*time.Second
	interruptCheckTimer := time.NewTicker(runDuration)
	defer interruptCheckTimer.Stop()

	receivedInterrupts := 0
	gotRunCompleted := false
	for {
		if gotRunCompleted {
			break
		}

		select {
		case <-groupReceivedInterrupts:
			receivedInterrupts += 1
		case <-runCompleted:
			gotRunCompleted = true
		case <-interruptCheckTimer.C:
			t.Errorf("did not receive expected interrupts within reasonable time, got %d", receivedInterrupts)
			t.FailNow()
		}
	}

	require.True(t, gotRunCompleted, "rungroup.Run did not terminate within time limit")

	for drained := false; !drained; {
		select {
		case <-groupReceivedInterrupts:
			receivedInterrupts += 1
		default:
			drained = true
		}
	}

	// The blocking actor's interrupt has not completed yet
	require.Equal(t, 2, receivedInterrupts)
}

func TestRun_RecoversAndShutsDownOnActorPanic(t *testing.T) {
	t.Parallel()

	testRunGroup := NewRunGroup()

	groupReceivedInterrupts := make(chan struct{}, 2)

	wellBehavedActorInterrupt := make(chan struct{})
	testRunGroup.Add("wellBehavedActor", func() error {
		<-wellBehavedActorInterrupt
		return nil
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
		wellBehavedActorInterrupt <- struct{}{}
	})

	testRunGroup.Add("panickingActor", func() error {
		time.Sleep(500 * time.Millisecond)
		panic("something went very wrong")
	}, func(error) {
		groupReceivedInterrupts <- struct{}{}
	})

	runCompleted := make(chan struct{})
	go func() {
		err := testRunGroup.Run()
		require.Error(t, err)
		runCompleted <- struct{}{}
	}()

	select {
	case <-runCompleted:
	case <-time.After(1*time.Second + InterruptTimeout + executeReturnTimeout + 1*time.Second):
		t.Errorf("rungroup did not shut down after actor panic within time limit")
		t.FailNow()
	}
}
