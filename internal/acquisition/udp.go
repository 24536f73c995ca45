package acquisition

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/strigiform/skeeterhawk/internal/dsp"
	"github.com/strigiform/skeeterhawk/internal/logging"
	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// Chunk wire format, little endian:
//
//	byte 0     microphone index
//	bytes 1-4  uint32 sample offset within the capture
//	bytes 5+   float32 samples
//
// One capture is complete when every channel has received SampleCount
// samples. Chunks may arrive in any order; duplicates overwrite in place.
const chunkHeaderLen = 5

// maxChunkSamples keeps each datagram under a typical 1500-byte MTU.
const maxChunkSamples = 360

// EncodeChunk renders one datagram of the capture stream.
func EncodeChunk(mic int, offset uint32, samples []float64) []byte {
	buf := make([]byte, chunkHeaderLen+4*len(samples))
	buf[0] = byte(mic)
	binary.LittleEndian.PutUint32(buf[1:5], offset)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[chunkHeaderLen+4*i:], math.Float32bits(float32(v)))
	}
	return buf
}

// DecodeChunk parses a datagram into its channel, offset, and samples.
func DecodeChunk(datagram []byte) (mic int, offset uint32, samples []float32, err error) {
	if len(datagram) < chunkHeaderLen || (len(datagram)-chunkHeaderLen)%4 != 0 {
		return 0, 0, nil, fmt.Errorf("chunk length %d: %w", len(datagram), dsp.ErrInvalidArgument)
	}
	mic = int(datagram[0])
	if mic >= sonar.NumMics {
		return 0, 0, nil, fmt.Errorf("chunk microphone %d: %w", mic, dsp.ErrInvalidArgument)
	}
	offset = binary.LittleEndian.Uint32(datagram[1:5])
	n := (len(datagram) - chunkHeaderLen) / 4
	samples = make([]float32, n)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(datagram[chunkHeaderLen+4*i:]))
	}
	return mic, offset, samples, nil
}

// UDPSource reads captures streamed by the microphone front end and sends
// the transmit chirp back to it. Binding the listen socket retries with
// exponential backoff so the interceptor can start before the network is up.
type UDPSource struct {
	cfg        Config
	listenAddr string
	remoteAddr string
	log        logging.Logger

	conn    *net.UDPConn
	remote  *net.UDPAddr
	rx      [sonar.NumMics][]float64
	written [sonar.NumMics][]bool
	filled  [sonar.NumMics]int
}

// NewUDP creates a source listening on listenAddr for capture chunks and
// transmitting chirps to remoteAddr.
func NewUDP(listenAddr, remoteAddr string, log logging.Logger) *UDPSource {
	if log == nil {
		log = logging.Nop()
	}
	return &UDPSource{
		listenAddr: listenAddr,
		remoteAddr: remoteAddr,
		log:        log.With(logging.F("component", "acquisition")),
	}
}

func (u *UDPSource) Init(ctx context.Context, cfg Config) error {
	if cfg.SampleRate <= 0 || cfg.SampleCount <= 0 {
		return fmt.Errorf("udp source: sample rate %g, count %d: %w",
			cfg.SampleRate, cfg.SampleCount, dsp.ErrInvalidArgument)
	}
	u.cfg = cfg
	for i := range u.rx {
		u.rx[i] = make([]float64, cfg.SampleCount)
		u.written[i] = make([]bool, cfg.SampleCount)
	}

	laddr, err := net.ResolveUDPAddr("udp", u.listenAddr)
	if err != nil {
		return fmt.Errorf("udp source: resolve listen %q: %w", u.listenAddr, err)
	}
	if u.remoteAddr != "" {
		u.remote, err = net.ResolveUDPAddr("udp", u.remoteAddr)
		if err != nil {
			return fmt.Errorf("udp source: resolve remote %q: %w", u.remoteAddr, err)
		}
	}

	bind := func() error {
		conn, err := net.ListenUDP("udp", laddr)
		if err != nil {
			u.log.Warn("bind failed, retrying", logging.F("addr", u.listenAddr), logging.F("err", err))
			return err
		}
		u.conn = conn
		return nil
	}
	if err := backoff.Retry(bind, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return fmt.Errorf("udp source: bind %q: %w", u.listenAddr, err)
	}
	u.log.Info("listening", logging.F("addr", u.conn.LocalAddr().String()))
	return nil
}

func (u *UDPSource) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}

// LocalAddr reports the bound listen address.
func (u *UDPSource) LocalAddr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}

// Transmit streams the chirp to the front end in MTU-sized chunks.
func (u *UDPSource) Transmit(ctx context.Context, chirp []float64) error {
	if u.conn == nil {
		return fmt.Errorf("udp source: not initialised: %w", dsp.ErrInvalidArgument)
	}
	if u.remote == nil {
		return nil // no transmitter configured; receive-only rig
	}
	for off := 0; off < len(chirp); off += maxChunkSamples {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := off + maxChunkSamples
		if end > len(chirp) {
			end = len(chirp)
		}
		if _, err := u.conn.WriteToUDP(EncodeChunk(0, uint32(off), chirp[off:end]), u.remote); err != nil {
			return fmt.Errorf("udp source: transmit: %w", err)
		}
	}
	return nil
}

// Receive assembles one full capture. It blocks until every channel is
// complete or the context expires.
func (u *UDPSource) Receive(ctx context.Context) ([sonar.NumMics][]float64, error) {
	if u.conn == nil {
		return [sonar.NumMics][]float64{}, fmt.Errorf("udp source: not initialised: %w", dsp.ErrInvalidArgument)
	}

	for m := range u.filled {
		u.filled[m] = 0
		for j := range u.rx[m] {
			u.rx[m][j] = 0
			u.written[m][j] = false
		}
	}

	datagram := make([]byte, chunkHeaderLen+4*maxChunkSamples)
	for !u.captureComplete() {
		deadline := time.Now().Add(time.Second)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := u.conn.SetReadDeadline(deadline); err != nil {
			return [sonar.NumMics][]float64{}, fmt.Errorf("udp source: set deadline: %w", err)
		}

		n, _, err := u.conn.ReadFromUDP(datagram)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return [sonar.NumMics][]float64{}, ctxErr
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return [sonar.NumMics][]float64{}, fmt.Errorf("udp source: read: %w", err)
		}

		mic, offset, samples, err := DecodeChunk(datagram[:n])
		if err != nil {
			u.log.Warn("dropping malformed chunk", logging.F("err", err))
			continue
		}
		buf := u.rx[mic]
		for i, v := range samples {
			j := int(offset) + i
			if j >= len(buf) {
				continue
			}
			buf[j] = float64(v)
			// Re-sent chunks overwrite in place and must not count twice.
			if !u.written[mic][j] {
				u.written[mic][j] = true
				u.filled[mic]++
			}
		}
	}
	return u.rx, nil
}

func (u *UDPSource) captureComplete() bool {
	for _, n := range u.filled {
		if n < u.cfg.SampleCount {
			return false
		}
	}
	return true
}
