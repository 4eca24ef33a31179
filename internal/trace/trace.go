//go:build linux

// Package trace attaches an XDP program to a network interface associated
// with the controller channel and drains a ring buffer of backpressure
// events, giving a read/write-stall counter for diagnosing a stuck
// transport.
package trace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
)

// StallEvent matches the struct a companion stall_monitor.bpf.c would
// populate: a monotonically increasing counter of observed backpressure
// stalls on the traced interface.
type StallEvent struct {
	StallCount uint32
}

// bpfObjects holds the programs and maps this tracer attaches.
// LoadBpfObjects is a stub until a compiled object is vendored alongside
// it.
type bpfObjects struct {
	XDPStallFilter *ebpf.Program `ebpf:"xdp_stall_filter"`
	StallEvents    *ebpf.Map     `ebpf:"stall_events"`
}

func (o *bpfObjects) Close() error {
	if o.XDPStallFilter != nil {
		o.XDPStallFilter.Close()
	}
	if o.StallEvents != nil {
		o.StallEvents.Close()
	}
	return nil
}

// LoadBpfObjects loads the compiled stall-monitor program. Stub: returns nil
// until a real .o is built and embedded.
func LoadBpfObjects(obj interface{}, opts *ebpf.CollectionOptions) error {
	return nil
}

// Tracer drains backpressure stall events for a single network interface.
type Tracer struct {
	objs  bpfObjects
	link  link.Link
	r     *ringbuf.Reader
	iface string
}

// Attach attaches the stall-monitor XDP program to iface and opens its ring
// buffer reader.
func Attach(iface string) (*Tracer, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("trace: remove memlock rlimit: %w", err)
	}

	t := &Tracer{iface: iface}

	objs := bpfObjects{}
	if err := LoadBpfObjects(&objs, nil); err != nil {
		return nil, fmt.Errorf("trace: load bpf objects: %w", err)
	}
	t.objs = objs

	netif, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("trace: lookup interface %s: %w", iface, err)
	}

	l, err := link.AttachXDP(link.XDPOptions{
		Program:   objs.XDPStallFilter,
		Interface: netif.Index,
	})
	if err != nil {
		return nil, fmt.Errorf("trace: attach xdp program to %s: %w", iface, err)
	}
	t.link = l

	r, err := ringbuf.NewReader(objs.StallEvents)
	if err != nil {
		return nil, fmt.Errorf("trace: create ring buffer reader: %w", err)
	}
	t.r = r

	log.Printf("trace: attached stall monitor to %s", iface)
	return t, nil
}

// Close detaches the program and releases the ring buffer reader.
func (t *Tracer) Close() error {
	if t.link != nil {
		if err := t.link.Close(); err != nil {
			log.Printf("trace: closing xdp link: %v", err)
		}
	}
	if t.r != nil {
		if err := t.r.Close(); err != nil {
			log.Printf("trace: closing ring buffer reader: %v", err)
		}
	}
	if t.objs.XDPStallFilter != nil {
		t.objs.Close()
	}
	log.Printf("trace: detached stall monitor from %s", t.iface)
	return nil
}

// ReadStall blocks for the next stall event and returns its counter value.
func (t *Tracer) ReadStall() (uint32, error) {
	record, err := t.r.Read()
	if err != nil {
		if errors.Is(err, ringbuf.ErrClosed) {
			return 0, fmt.Errorf("trace: ring buffer closed: %w", err)
		}
		return 0, fmt.Errorf("trace: read ring buffer: %w", err)
	}

	var ev StallEvent
	if err := binary.Read(bytes.NewBuffer(record.RawSample), binary.LittleEndian, &ev); err != nil {
		return 0, fmt.Errorf("trace: decode stall event: %w", err)
	}
	return ev.StallCount, nil
}
