// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmitDeliversResult(t *testing.T) {
	p := New(2)
	defer p.Wait()
	defer p.Shutdown()

	p.Submit(7, func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})

	select {
	case r := <-p.Results():
		if r.ID != 7 {
			t.Fatalf("ID = %d, want 7", r.ID)
		}
		if r.Value != 42 {
			t.Fatalf("Value = %v, want 42", r.Value)
		}
		if r.Err != nil {
			t.Fatalf("Err = %v, want nil", r.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("job never completed")
	}
}

func TestSubmitPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Wait()
	defer p.Shutdown()

	wantErr := errors.New("job failed")
	p.Submit(1, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})

	r := <-p.Results()
	if r.Err != wantErr {
		t.Fatalf("Err = %v, want %v", r.Err, wantErr)
	}
}

func TestSubmitWaitReturnsResultDirectly(t *testing.T) {
	p := New(2)
	defer p.Wait()
	defer p.Shutdown()

	v, err := p.SubmitWait(9, func(ctx context.Context) (interface{}, error) {
		return "signed", nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if v != "signed" {
		t.Fatalf("value = %v, want %q", v, "signed")
	}

	select {
	case r := <-p.Results():
		t.Fatalf("SubmitWait result leaked onto the shared Results channel: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitWaitPropagatesError(t *testing.T) {
	p := New(1)
	defer p.Wait()
	defer p.Shutdown()

	wantErr := errors.New("sign failed")
	_, err := p.SubmitWait(1, func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestNewDefaultsNonPositiveSize(t *testing.T) {
	p := New(0)
	defer p.Wait()
	defer p.Shutdown()

	for i := 0; i < DefaultSize; i++ {
		id := uint64(i)
		p.Submit(id, func(ctx context.Context) (interface{}, error) { return id, nil })
	}
	seen := make(map[uint64]bool)
	for i := 0; i < DefaultSize; i++ {
		select {
		case r := <-p.Results():
			seen[r.ID] = true
		case <-time.After(time.Second):
			t.Fatal("not all jobs completed; pool may not have DefaultSize workers")
		}
	}
	if len(seen) != DefaultSize {
		t.Fatalf("distinct results = %d, want %d", len(seen), DefaultSize)
	}
}

func TestShutdownCancelsContext(t *testing.T) {
	p := New(1)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	p.Submit(1, func(ctx context.Context) (interface{}, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	<-started
	p.Shutdown()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was never cancelled by Shutdown")
	}
	p.Wait()
}
