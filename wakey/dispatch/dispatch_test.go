package wakey_dispatch

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	wakey_ipcache "wakey-bot/wakey/ipcache"
	wakey_log "wakey-bot/wakey/log"
	wakey_packet "wakey-bot/wakey/packet"
	wakey_probe "wakey-bot/wakey/probe"

	"github.com/stretchr/testify/require"
)

const operator = "220975319786586112"

type fakeWaker struct {
	mu   sync.Mutex
	sent [][wakey_packet.MACLength]byte
	err  error
}

func (w *fakeWaker) Send(_ context.Context, mac [wakey_packet.MACLength]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, mac)
	return w.err
}

type fakeProber struct {
	targets []string
	result  wakey_probe.Result
	err     error
	block   chan struct{}
}

func (p *fakeProber) Run(_ context.Context, target string) (wakey_probe.Result, error) {
	if p.block != nil {
		<-p.block
	}
	p.targets = append(p.targets, target)
	return p.result, p.err
}

type fakeDevices struct {
	macs  map[string][wakey_packet.MACLength]byte
	woken []string
}

func (d *fakeDevices) LookupMAC(name string) ([wakey_packet.MACLength]byte, bool) {
	mac, ok := d.macs[name]
	return mac, ok
}

func (d *fakeDevices) UpdateLastWoken(name string) error {
	d.woken = append(d.woken, name)
	return nil
}

type recorder struct {
	mu      sync.Mutex
	replies []string
	err     error
}

func (r *recorder) Reply(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, text)
	return r.err
}

type harness struct {
	dispatcher *Dispatcher
	resolves   *atomic.Int32
	cache      *wakey_ipcache.Cache
	waker      *fakeWaker
	prober     *fakeProber
	devices    *fakeDevices
}

func mustNew(t *testing.T, config Config) *Dispatcher {
	t.Helper()

	d, err := New(config)
	require.NoError(t, err)
	return d
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	resolves := &atomic.Int32{}
	cache := wakey_ipcache.NewCache(wakey_ipcache.ResolverFunc(func(context.Context) (netip.Addr, error) {
		resolves.Add(1)
		return netip.MustParseAddr("203.0.113.42"), nil
	}), nil)

	h := &harness{
		resolves: resolves,
		cache:    cache,
		waker:    &fakeWaker{},
		prober:   &fakeProber{result: wakey_probe.Result{Output: "64 bytes from 8.8.8.8\n", Succeeded: true}},
		devices:  &fakeDevices{macs: map[string][wakey_packet.MACLength]byte{"desktop": {0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}}},
	}
	h.dispatcher = mustNew(t, Config{
		OperatorID: operator,
		IPCache:    cache,
		Waker:      h.waker,
		Prober:     h.prober,
		Devices:    h.devices,
	})
	return h
}

func (h *harness) send(content string) []string {
	rec := &recorder{}
	h.dispatcher.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: content}, rec)
	return rec.replies
}

func TestParse(t *testing.T) {
	tests := []struct {
		content string
		name    string
		arg     string
		ok      bool
	}{
		{"!ip", "ip", "", true},
		{"!ip force", "ip", "force", true},
		{"!ip   force  ", "ip", "force", true},
		{"! ip", "ip", "", true},
		{"!wake 000000000000", "wake", "000000000000", true},
		{"!ping 8.8.8.8 -c 100", "ping", "8.8.8.8 -c 100", true},
		{"!ping\t1.1.1.1", "ping", "1.1.1.1", true},
		{"!IP", "", "", false},
		{"!shutdown now", "", "", false},
		{"ip", "", "", false},
		{"?ip", "", "", false},
		{"", "", "", false},
		{"!", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			name, arg, ok := Parse(tt.content)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.name, name)
			require.Equal(t, tt.arg, arg)
		})
	}
}

func TestUnauthorizedMessagesAreDropped(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"stranger in private", Message{SenderID: "1234", Private: true}},
		{"operator in group", Message{SenderID: operator, Private: false}},
		{"stranger in group", Message{SenderID: "1234", Private: false}},
		{"empty sender", Message{SenderID: "", Private: true}},
	}

	for _, tt := range tests {
		for _, content := range []string{"!ip", "!ip force", "!wake 000000000000", "!ping 8.8.8.8"} {
			t.Run(tt.name+" "+content, func(t *testing.T) {
				h := newHarness(t)
				rec := &recorder{}
				msg := tt.msg
				msg.Content = content

				h.dispatcher.Dispatch(context.Background(), msg, rec)

				require.Empty(t, rec.replies)
				require.Zero(t, h.resolves.Load())
				require.Empty(t, h.waker.sent)
				require.Empty(t, h.prober.targets)
			})
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{OperatorID: operator})
	require.Error(t, err)
	require.Contains(t, err.Error(), "ip cache is required")
	require.Contains(t, err.Error(), "wake sender is required")
	require.Contains(t, err.Error(), "probe runner is required")

	h := newHarness(t)
	_, err = New(Config{OperatorID: operator, IPCache: h.cache, Waker: h.waker})
	require.Error(t, err)
	require.NotContains(t, err.Error(), "ip cache")
	require.Contains(t, err.Error(), "probe runner is required")
}

func TestEmptyOperatorNeverAuthorizes(t *testing.T) {
	h := newHarness(t)
	d := mustNew(t, Config{IPCache: h.cache, Waker: h.waker, Prober: h.prober})
	require.False(t, d.Authorized(Message{SenderID: "", Private: true}))
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	h := newHarness(t)

	require.Empty(t, h.send("!reboot"))
	require.Empty(t, h.send("hello there"))
	require.Zero(t, h.resolves.Load())
}

func TestIPUsesCache(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, []string{"The ip address is: 203.0.113.42"}, h.send("!ip"))
	require.EqualValues(t, 1, h.resolves.Load())

	require.Equal(t, []string{"The ip address is: 203.0.113.42"}, h.send("!ip"))
	require.EqualValues(t, 1, h.resolves.Load())

	// Anything other than the exact keyword is a plain request.
	h.send("!ip FORCE")
	h.send("!ip please")
	require.EqualValues(t, 1, h.resolves.Load())

	h.send("!ip force")
	require.EqualValues(t, 2, h.resolves.Load())
}

func TestIPForceOverwritesWithAbsent(t *testing.T) {
	var calls atomic.Int32
	cache := wakey_ipcache.NewCache(wakey_ipcache.ResolverFunc(func(context.Context) (netip.Addr, error) {
		if calls.Add(1) == 1 {
			return netip.MustParseAddr("203.0.113.1"), nil
		}
		return netip.Addr{}, errors.New("offline")
	}), nil)
	d := mustNew(t, Config{OperatorID: operator, IPCache: cache, Waker: &fakeWaker{}, Prober: &fakeProber{}})

	rec := &recorder{}
	d.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: "!ip"}, rec)
	d.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: "!ip force"}, rec)

	require.Equal(t, []string{"The ip address is: 203.0.113.1", "The ip address is: None"}, rec.replies)
	_, ok := cache.Peek()
	require.False(t, ok)
}

func TestWake(t *testing.T) {
	tests := []struct {
		name    string
		content string
		reply   string
		sent    bool
	}{
		{"six bytes", "!wake 000000000000", ReplyWakeSent, true},
		{"five bytes", "!wake 0000000000", ReplyBadMAC, false},
		{"empty", "!wake", ReplyBadMAC, false},
		{"not hex", "!wake zzzzzzzzzzzz", ReplyBadMAC, false},
		{"odd length", "!wake 00000000000", ReplyBadMAC, false},
		{"colon form is not accepted", "!wake AA:BB:CC:DD:EE:FF", ReplyBadMAC, false},
		{"device name", "!wake desktop", ReplyWakeSent, true},
		{"unknown device", "!wake laptop", ReplyBadMAC, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			require.Equal(t, []string{tt.reply}, h.send(tt.content))
			require.Equal(t, tt.sent, len(h.waker.sent) == 1)
		})
	}
}

func TestWakeSendsDecodedMAC(t *testing.T) {
	h := newHarness(t)

	h.send("!wake 0a1B2c3D4e5F")
	require.Equal(t, [][wakey_packet.MACLength]byte{{0x0A, 0x1B, 0x2C, 0x3D, 0x4E, 0x5F}}, h.waker.sent)

	h.send("!wake desktop")
	require.Equal(t, [wakey_packet.MACLength]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, h.waker.sent[1])
	require.Equal(t, []string{"desktop"}, h.devices.woken)
}

func TestWakeRawHexTakesPrecedenceOverDeviceName(t *testing.T) {
	h := newHarness(t)
	h.devices.macs["000000000000"] = [wakey_packet.MACLength]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

	require.Equal(t, []string{ReplyWakeSent}, h.send("!wake 000000000000"))
	require.Equal(t, [][wakey_packet.MACLength]byte{{}}, h.waker.sent)
	require.Empty(t, h.devices.woken)
}

func TestWakeTransmissionFailure(t *testing.T) {
	h := newHarness(t)
	h.waker.err = errors.New("network unreachable")

	require.Equal(t, []string{ReplyWakeFailed}, h.send("!wake 000000000000"))
	require.Empty(t, h.devices.woken)
}

func TestWakeWithoutDeviceBook(t *testing.T) {
	h := newHarness(t)
	d := mustNew(t, Config{OperatorID: operator, IPCache: h.cache, Waker: h.waker, Prober: h.prober})
	rec := &recorder{}

	d.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: "!wake 000000000000"}, rec)
	d.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: "!wake desktop"}, rec)
	require.Equal(t, []string{ReplyWakeSent, ReplyBadMAC}, rec.replies)
}

func TestPing(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, []string{"64 bytes from 8.8.8.8\n"}, h.send("!ping 8.8.8.8"))
	require.Equal(t, []string{"8.8.8.8"}, h.prober.targets)
}

func TestPingPassesArgumentVerbatim(t *testing.T) {
	h := newHarness(t)

	h.send("!ping 8.8.8.8; rm -rf / && echo $(whoami)")
	require.Equal(t, []string{"8.8.8.8; rm -rf / && echo $(whoami)"}, h.prober.targets)
}

func TestPingFailedProbeStillRepliesWithOutput(t *testing.T) {
	h := newHarness(t)
	h.prober.result = wakey_probe.Result{Output: "ping: unknown host\n", Succeeded: false}

	require.Equal(t, []string{"ping: unknown host\n"}, h.send("!ping nowhere"))
}

func TestPingLaunchFailure(t *testing.T) {
	h := newHarness(t)
	h.prober.err = errors.New("exec: \"ping\": executable file not found in $PATH")

	require.Equal(t, []string{ReplyPingFailed}, h.send("!ping 8.8.8.8"))
}

func TestReplyFailureIsLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	h := newHarness(t)
	h.dispatcher = mustNew(t, Config{
		OperatorID: operator,
		IPCache:    h.cache,
		Waker:      h.waker,
		Prober:     h.prober,
		Logger:     wakey_log.NewWriterLogger(&buf, wakey_log.DEBUG),
	})

	rec := &recorder{err: errors.New("discord: 500")}
	require.NotPanics(t, func() {
		h.dispatcher.Dispatch(context.Background(), Message{SenderID: operator, Private: true, Content: "!ip"}, rec)
	})

	require.Len(t, rec.replies, 1)
	require.Contains(t, buf.String(), "Could not deliver reply")
	require.Contains(t, buf.String(), "discord: 500")
}

func TestSlowCommandDoesNotStallOthers(t *testing.T) {
	h := newHarness(t)
	h.prober.block = make(chan struct{})

	pingDone := make(chan struct{})
	go func() {
		h.send("!ping 8.8.8.8")
		close(pingDone)
	}()

	ipDone := make(chan []string)
	go func() {
		ipDone <- h.send("!ip")
	}()

	select {
	case replies := <-ipDone:
		require.Equal(t, []string{"The ip address is: 203.0.113.42"}, replies)
	case <-time.After(2 * time.Second):
		t.Fatal("ip command stalled behind an outstanding ping")
	}

	close(h.prober.block)
	<-pingDone
}
