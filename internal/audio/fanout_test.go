package audio

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFanout_DeliversSameFramesToEachTap(t *testing.T) {
	frame := bytes.Repeat([]byte{0x01, 0x02}, captureChunkBytes/2)
	source := bytes.NewReader(append(append([]byte(nil), frame...), frame...))

	f := NewFanout(source)
	t1 := f.Tap()
	t2 := f.Tap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	buf1 := make([]byte, captureChunkBytes)
	n, err := io.ReadFull(t1, buf1)
	require.NoError(t, err)
	require.Equal(t, captureChunkBytes, n)
	require.Equal(t, frame, buf1)

	buf2 := make([]byte, captureChunkBytes)
	n, err = io.ReadFull(t2, buf2)
	require.NoError(t, err)
	require.Equal(t, captureChunkBytes, n)
	require.Equal(t, frame, buf2)
}

func TestFanout_SlowTapDropsRatherThanBlocksSource(t *testing.T) {
	frameCount := 10
	frame := bytes.Repeat([]byte{0xAA}, captureChunkBytes)
	var all []byte
	for i := 0; i < frameCount; i++ {
		all = append(all, frame...)
	}

	f := NewFanout(bytes.NewReader(all))
	slow := f.Tap() // never read from

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run blocked on a tap nobody reads from")
	}
	_ = slow
}
