// Package buffer provides thread-safe generic containers for streaming
// pipelines.
//
//   - Buffer: an unbounded FIFO queue. Next blocks until an element is
//     available; CloseWrite lets consumers drain what is left, CloseWithError
//     stops both sides at once.
//   - RingBuffer: a fixed-size window that overwrites the oldest element when
//     full.
//
// Example usage:
//
//	q := buffer.N[string](16)
//	go func() {
//		for {
//			s, err := q.Next()
//			if errors.Is(err, buffer.ErrIteratorDone) {
//				return
//			}
//			fmt.Println(s)
//		}
//	}()
//	q.Add("hello")
//	q.CloseWrite()
package buffer
