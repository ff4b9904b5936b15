package buffer

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestBuffer_FIFO(t *testing.T) {
	buf := N[int](2)
	for i := 1; i <= 5; i++ {
		if err := buf.Add(i); err != nil {
			t.Fatalf("Add(%d): %v", i, err)
		}
	}
	if buf.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", buf.Len())
	}
	for want := 1; want <= 5; want++ {
		got, err := buf.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
}

func TestBuffer_NextBlocksUntilAdd(t *testing.T) {
	buf := N[string](0)
	got := make(chan string, 1)
	go func() {
		s, _ := buf.Next()
		got <- s
	}()

	select {
	case s := <-got:
		t.Fatalf("Next returned %q before Add", s)
	case <-time.After(20 * time.Millisecond):
	}

	buf.Add("hello")
	select {
	case s := <-got:
		if s != "hello" {
			t.Fatalf("Next() = %q, want hello", s)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock")
	}
}

func TestBuffer_CloseWriteDrains(t *testing.T) {
	buf := N[int](4)
	buf.Add(1)
	buf.Add(2)
	buf.CloseWrite()

	if err := buf.Add(3); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Add after CloseWrite = %v, want io.ErrClosedPipe", err)
	}
	for _, want := range []int{1, 2} {
		got, err := buf.Next()
		if err != nil || got != want {
			t.Fatalf("Next() = %d, %v; want %d", got, err, want)
		}
	}
	if _, err := buf.Next(); !errors.Is(err, ErrIteratorDone) {
		t.Fatalf("Next on drained buffer = %v, want ErrIteratorDone", err)
	}
}

func TestBuffer_CloseWithErrorUnblocks(t *testing.T) {
	buf := N[int](0)
	boom := errors.New("boom")

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := buf.Next()
			errs <- err
		}()
	}
	time.Sleep(10 * time.Millisecond)
	buf.CloseWithError(boom)
	wg.Wait()
	close(errs)
	for err := range errs {
		if !errors.Is(err, boom) {
			t.Fatalf("Next = %v, want %v", err, boom)
		}
	}
	if !errors.Is(buf.Error(), boom) {
		t.Fatalf("Error() = %v", buf.Error())
	}
}

func TestBuffer_Drain(t *testing.T) {
	buf := N[int](4)
	buf.Add(1)
	buf.Add(2)
	buf.Next()
	buf.Add(3)
	got := buf.Drain()
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("Drain() = %v, want [2 3]", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("Len() after Drain = %d", buf.Len())
	}
}

func TestBuffer_ConcurrentProducers(t *testing.T) {
	buf := N[int](0)
	const producers, each = 4, 250

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range each {
				buf.Add(p*each + i)
			}
		}()
	}
	go func() {
		wg.Wait()
		buf.CloseWrite()
	}()

	seen := make(map[int]bool)
	for {
		v, err := buf.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		seen[v] = true
	}
	if len(seen) != producers*each {
		t.Fatalf("received %d distinct values, want %d", len(seen), producers*each)
	}
}
