package dist

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	leaderRank    = 0
	dialInterval  = 250 * time.Millisecond
	maxFrameBytes = 1 << 30
)

// TCPGroup implements Group over plain TCP. Rank 0 acts as the
// coordinator: every collective is a gather to rank 0 followed by a
// broadcast of the combined message, which gives barrier and all-gather
// semantics over a known peer set.
type TCPGroup struct {
	rank      int
	worldSize int

	listener net.Listener // leader only
	peers    []net.Conn   // leader only, indexed by rank
	conn     net.Conn     // followers only
}

// NewTCPGroup forms a group of worldSize processes rendezvousing at
// addr. Rank 0 listens; every other rank dials with retry until the
// context is done. The call returns once all ranks have joined.
func NewTCPGroup(ctx context.Context, rank, worldSize int, addr string) (*TCPGroup, error) {
	if worldSize < 1 {
		return nil, fmt.Errorf("dist: world size must be at least 1, got %d", worldSize)
	}
	if rank < 0 || rank >= worldSize {
		return nil, fmt.Errorf("dist: rank %d out of range [0, %d)", rank, worldSize)
	}

	g := &TCPGroup{rank: rank, worldSize: worldSize}
	if rank == leaderRank {
		if err := g.listen(ctx, addr); err != nil {
			g.Close()
			return nil, err
		}
		return g, nil
	}
	if err := g.join(ctx, addr); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *TCPGroup) listen(ctx context.Context, addr string) error {
	config := net.ListenConfig{}
	listener, err := config.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dist: listen %s: %w", addr, err)
	}
	g.listener = listener
	g.peers = make([]net.Conn, g.worldSize)

	stop := closeOnCancel(ctx, listener)
	defer stop()

	for joined := 1; joined < g.worldSize; joined++ {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dist: accept: %w", err)
		}
		hello, err := readFrame(conn)
		if err != nil {
			conn.Close()
			return fmt.Errorf("dist: read join frame: %w", err)
		}
		if len(hello) != 4 {
			conn.Close()
			return fmt.Errorf("dist: malformed join frame of %d bytes", len(hello))
		}
		peer := int(binary.BigEndian.Uint32(hello))
		if peer <= leaderRank || peer >= g.worldSize {
			conn.Close()
			return fmt.Errorf("dist: join from invalid rank %d", peer)
		}
		if g.peers[peer] != nil {
			conn.Close()
			return fmt.Errorf("dist: duplicate join from rank %d", peer)
		}
		g.peers[peer] = conn
	}
	return nil
}

func (g *TCPGroup) join(ctx context.Context, addr string) error {
	dialer := net.Dialer{}
	var conn net.Conn
	for {
		c, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn = c
			break
		}
		// The leader may not be listening yet.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dialInterval):
		}
	}

	hello := make([]byte, 4)
	binary.BigEndian.PutUint32(hello, uint32(g.rank))
	if err := writeFrame(conn, hello); err != nil {
		conn.Close()
		return fmt.Errorf("dist: send join frame: %w", err)
	}
	g.conn = conn
	return nil
}

func (g *TCPGroup) Rank() int      { return g.rank }
func (g *TCPGroup) WorldSize() int { return g.worldSize }

// Barrier is an all-gather of empty payloads.
func (g *TCPGroup) Barrier(ctx context.Context) error {
	_, err := g.AllGather(ctx, nil)
	return err
}

func (g *TCPGroup) AllGather(ctx context.Context, payload []byte) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.worldSize == 1 {
		return [][]byte{payload}, nil
	}
	if g.rank == leaderRank {
		return g.gatherAndBroadcast(ctx, payload)
	}
	return g.contribute(ctx, payload)
}

func (g *TCPGroup) gatherAndBroadcast(ctx context.Context, payload []byte) ([][]byte, error) {
	stop := closeOnCancel(ctx, connCloser(g.peers))
	defer stop()

	parts := make([][]byte, g.worldSize)
	parts[leaderRank] = payload
	for rank, conn := range g.peers {
		if conn == nil {
			continue
		}
		part, err := readFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dist: gather from rank %d: %w", rank, err)
		}
		parts[rank] = part
	}

	combined := encodeParts(parts)
	for rank, conn := range g.peers {
		if conn == nil {
			continue
		}
		if err := writeFrame(conn, combined); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("dist: broadcast to rank %d: %w", rank, err)
		}
	}
	return parts, nil
}

func (g *TCPGroup) contribute(ctx context.Context, payload []byte) ([][]byte, error) {
	stop := closeOnCancel(ctx, g.conn)
	defer stop()

	if err := writeFrame(g.conn, payload); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dist: send to leader: %w", err)
	}
	combined, err := readFrame(g.conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("dist: receive from leader: %w", err)
	}
	parts, err := decodeParts(combined, g.worldSize)
	if err != nil {
		return nil, err
	}
	return parts, nil
}

func (g *TCPGroup) Close() error {
	var first error
	if g.listener != nil {
		if err := g.listener.Close(); err != nil && first == nil {
			first = err
		}
	}
	for _, conn := range g.peers {
		if conn == nil {
			continue
		}
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	if g.conn != nil {
		if err := g.conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Wire format: every frame is a big-endian uint32 length followed by
// the body. A combined broadcast body is a uint32 part count followed
// by length-prefixed parts in rank order.

func writeFrame(conn net.Conn, payload []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := conn.Write(payload)
	return err
}

func readFrame(conn net.Conn) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header)
	if size > maxFrameBytes {
		return nil, fmt.Errorf("dist: frame of %d bytes exceeds limit", size)
	}
	if size == 0 {
		return nil, nil
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func encodeParts(parts [][]byte) []byte {
	total := 4
	for _, part := range parts {
		total += 4 + len(part)
	}
	out := make([]byte, 0, total)
	out = binary.BigEndian.AppendUint32(out, uint32(len(parts)))
	for _, part := range parts {
		out = binary.BigEndian.AppendUint32(out, uint32(len(part)))
		out = append(out, part...)
	}
	return out
}

func decodeParts(combined []byte, worldSize int) ([][]byte, error) {
	if len(combined) < 4 {
		return nil, fmt.Errorf("dist: truncated broadcast of %d bytes", len(combined))
	}
	count := int(binary.BigEndian.Uint32(combined))
	if count != worldSize {
		return nil, fmt.Errorf("dist: broadcast carries %d parts, want %d", count, worldSize)
	}
	combined = combined[4:]

	parts := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		if len(combined) < 4 {
			return nil, fmt.Errorf("dist: truncated part %d", i)
		}
		size := int(binary.BigEndian.Uint32(combined))
		combined = combined[4:]
		if len(combined) < size {
			return nil, fmt.Errorf("dist: part %d wants %d bytes, %d remain", i, size, len(combined))
		}
		if size == 0 {
			parts = append(parts, nil)
			continue
		}
		parts = append(parts, combined[:size:size])
		combined = combined[size:]
	}
	return parts, nil
}

type connCloser []net.Conn

func (c connCloser) Close() error {
	for _, conn := range c {
		if conn != nil {
			conn.Close()
		}
	}
	return nil
}

// closeOnCancel tears down blocking network IO when ctx is canceled.
// The returned stop function must be called once the IO completes.
func closeOnCancel(ctx context.Context, closer io.Closer) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closer.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}
