//go:build wasip1

package export

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/reglet-dev/robohost"
	"github.com/reglet-dev/robohost/abi"
)

var guest struct {
	module *Module
	server *Server
	once   sync.Once

	// pinned keeps host-written buffers alive until the next invoke consumes them.
	pinned map[uint32][]byte
	// last keeps the previous response alive until the host has copied it.
	last []byte
}

// Serve registers the module a wasm guest exposes. Call it from an init function of
// the guest's main package.
func Serve(m *Module) {
	guest.module = m
	guest.pinned = make(map[uint32][]byte)
	slog.SetDefault(slog.New(newHostLogHandler(slog.LevelDebug)))
}

//go:wasmexport rrp_plugin_new
func rrpPluginNew() uint64 {
	guest.once.Do(func() {
		var root Plugin
		if guest.module != nil && guest.module.New != nil {
			root = guest.module.New()
		}
		guest.server = NewServer(root, WithMiddleware(robohost.PanicRecoveryMiddleware()))
	})
	return abi.RootHandle
}

//go:wasmexport rrp_alloc
func rrpAlloc(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	buf := make([]byte, size)
	ptr := uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
	guest.pinned[ptr] = buf
	return ptr
}

//go:wasmexport rrp_invoke
func rrpInvoke(ptr, length uint32) uint64 {
	var req []byte
	if buf, ok := guest.pinned[ptr]; ok {
		req = buf[:length]
		delete(guest.pinned, ptr)
	}

	var resp []byte
	if guest.server == nil {
		resp = (&abi.Error{Code: abi.CodeInvalidRequest, Message: "plugin not constructed"}).ToJSON()
	} else {
		var err error
		resp, err = guest.server.Invoke(context.Background(), req)
		if err != nil {
			resp = abi.AsError(err).ToJSON()
		}
	}

	guest.last = resp
	if len(resp) == 0 {
		return 0
	}
	out := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(resp))))
	return out<<32 | uint64(len(resp))
}

//go:wasmimport rrp log_message
func hostLogMessage(packed uint64)

// hostLogHandler forwards guest log records to the host logger.
type hostLogHandler struct {
	level slog.Level
	attrs []slog.Attr
}

func newHostLogHandler(level slog.Level) *hostLogHandler {
	return &hostLogHandler{level: level}
}

func (h *hostLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *hostLogHandler) Handle(_ context.Context, r slog.Record) error {
	msg := abi.LogMessage{Level: r.Level.String(), Message: r.Message}
	for _, a := range h.attrs {
		msg.Attrs = append(msg.Attrs, wireAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		msg.Attrs = append(msg.Attrs, wireAttr(a))
		return true
	})

	data, err := json.Marshal(msg)
	if err != nil || len(data) == 0 {
		return err
	}
	ptr := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(data))))
	hostLogMessage(ptr<<32 | uint64(len(data)))
	return nil
}

func (h *hostLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hostLogHandler{level: h.level, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *hostLogHandler) WithGroup(string) slog.Handler {
	return h
}

func wireAttr(a slog.Attr) abi.LogAttr {
	v := a.Value.Resolve()
	attr := abi.LogAttr{Key: a.Key, Value: v.String(), Type: "any"}
	switch v.Kind() {
	case slog.KindString:
		attr.Type = "string"
	case slog.KindInt64:
		attr.Type = "int64"
	case slog.KindBool:
		attr.Type = "bool"
	case slog.KindFloat64:
		attr.Type = "float64"
	case slog.KindTime:
		attr.Type = "time"
		attr.Value = v.Time().Format("2006-01-02T15:04:05.999999999Z07:00")
	case slog.KindAny:
		if _, ok := v.Any().(error); ok {
			attr.Type = "error"
		}
	}
	return attr
}
