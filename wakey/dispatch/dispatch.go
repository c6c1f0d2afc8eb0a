// Package wakey_dispatch authorizes operator messages and routes them to the
// ip, wake and ping handlers.
package wakey_dispatch

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"unicode"
	wakey_ipcache "wakey-bot/wakey/ipcache"
	wakey_log "wakey-bot/wakey/log"
	wakey_packet "wakey-bot/wakey/packet"
	wakey_probe "wakey-bot/wakey/probe"
)

const (
	Prefix = "!"

	CommandIP   = "ip"
	CommandWake = "wake"
	CommandPing = "ping"

	forceKeyword = "force"
)

// Fixed replies. Nothing about the underlying error reaches the operator.
const (
	ReplyBadMAC     = "Could not parse mac"
	ReplyWakeFailed = "Could not wake pc"
	ReplyWakeSent   = "Initializing wakey wakey protocol"
	ReplyPingFailed = "Could not execute ping"
)

// Message is the part of an inbound chat event the dispatcher looks at.
type Message struct {
	SenderID string
	Private  bool
	Content  string
}

// Replier delivers one reply on the channel the message came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
}

type ReplierFunc func(ctx context.Context, text string) error

func (f ReplierFunc) Reply(ctx context.Context, text string) error {
	return f(ctx, text)
}

type IPCache interface {
	GetOrRefresh(ctx context.Context, force bool) netip.Addr
}

type WakeSender interface {
	Send(ctx context.Context, mac [wakey_packet.MACLength]byte) error
}

type ProbeRunner interface {
	Run(ctx context.Context, target string) (wakey_probe.Result, error)
}

// DeviceBook resolves friendly names given to "wake".
type DeviceBook interface {
	LookupMAC(name string) ([wakey_packet.MACLength]byte, bool)
	UpdateLastWoken(name string) error
}

// Config wires the dispatcher. IPCache, Waker and Prober are required;
// Devices and Logger are optional.
type Config struct {
	OperatorID string
	IPCache    IPCache
	Waker      WakeSender
	Prober     ProbeRunner
	Devices    DeviceBook
	Logger     *wakey_log.Logger
}

// Dispatcher holds no per-message state and is safe to call from many
// goroutines at once.
type Dispatcher struct {
	config Config
	logger *wakey_log.Logger
}

func New(config Config) (*Dispatcher, error) {
	var errs []error
	if config.IPCache == nil {
		errs = append(errs, errors.New("dispatcher: ip cache is required"))
	}
	if config.Waker == nil {
		errs = append(errs, errors.New("dispatcher: wake sender is required"))
	}
	if config.Prober == nil {
		errs = append(errs, errors.New("dispatcher: probe runner is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = wakey_log.Discard()
	}

	return &Dispatcher{
		config: config,
		logger: logger,
	}, nil
}

// Authorized reports whether msg comes from the operator over a private channel.
func (d *Dispatcher) Authorized(msg Message) bool {
	return d.config.OperatorID != "" && msg.SenderID == d.config.OperatorID && msg.Private
}

// Parse splits "!name rest" into the command name and trimmed argument.
// ok is false when the prefix is missing or the name is unknown.
func Parse(content string) (name, arg string, ok bool) {
	if !strings.HasPrefix(content, Prefix) {
		return "", "", false
	}

	body := strings.TrimSpace(strings.TrimPrefix(content, Prefix))
	name = body
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		name, arg = body[:i], strings.TrimSpace(body[i:])
	}

	switch name {
	case CommandIP, CommandWake, CommandPing:
		return name, arg, true
	default:
		return "", "", false
	}
}

// Dispatch handles one inbound message. Unauthorized messages and unknown
// commands are dropped without a reply.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, replier Replier) {
	if !d.Authorized(msg) {
		d.logger.Debug("Ignoring message from %s (private=%t)", msg.SenderID, msg.Private)
		return
	}

	name, arg, ok := Parse(msg.Content)
	if !ok {
		return
	}

	d.logger.LogCommand(msg.SenderID, name, arg)

	var reply string
	switch name {
	case CommandIP:
		reply = d.handleIP(ctx, arg)
	case CommandWake:
		reply = d.handleWake(ctx, arg)
	case CommandPing:
		reply = d.handlePing(ctx, arg)
	}

	if err := replier.Reply(ctx, reply); err != nil {
		d.logger.Error("Could not deliver reply to %s: %v", msg.SenderID, err)
	}
}

func (d *Dispatcher) handleIP(ctx context.Context, arg string) string {
	force := arg == forceKeyword
	if force {
		d.logger.Info("Using force to update ip.")
	}

	addr := d.config.IPCache.GetOrRefresh(ctx, force)
	d.logger.Info("Current ip: %s", wakey_ipcache.Format(addr))
	return wakey_ipcache.Render(addr)
}

func (d *Dispatcher) handleWake(ctx context.Context, arg string) string {
	mac, device, err := d.resolveMAC(arg)
	if err != nil {
		d.logger.Warn("Could not parse %q: %v", arg, err)
		return ReplyBadMAC
	}

	if err := d.config.Waker.Send(ctx, mac); err != nil {
		d.logger.Warn("Could not wake %s: %v", wakey_packet.FormatMAC(mac), err)
		return ReplyWakeFailed
	}

	if device != "" {
		if err := d.config.Devices.UpdateLastWoken(device); err != nil {
			d.logger.Warn("Failed to update last woken time for %s: %v", device, err)
		}
	}

	d.logger.Info("Waking %s", wakey_packet.FormatMAC(mac))
	return ReplyWakeSent
}

// resolveMAC decodes raw hex first and only then looks the argument up as a
// device name. device is the matched name, empty for raw hex.
func (d *Dispatcher) resolveMAC(arg string) (mac [wakey_packet.MACLength]byte, device string, err error) {
	mac, err = wakey_packet.ParseMAC(arg)
	if err == nil {
		return mac, "", nil
	}

	if d.config.Devices != nil && arg != "" {
		if stored, ok := d.config.Devices.LookupMAC(arg); ok {
			return stored, arg, nil
		}
	}

	return mac, "", err
}

func (d *Dispatcher) handlePing(ctx context.Context, arg string) string {
	res, err := d.config.Prober.Run(ctx, arg)
	if err != nil {
		d.logger.Error("Could not execute ping command: %v", err)
		return ReplyPingFailed
	}

	return res.Output
}
