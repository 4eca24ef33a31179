//go:build !mips && !mipsle
// +build !mips,!mipsle

// internal/transport/usb.go
// USB bulk-endpoint controller channel: a generic line-oriented
// io.ReadWriteCloser the player package dialogues over.
// NOTE: This file is excluded on MIPS builds due to the gousb dependency.

package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// USB wraps a claimed bulk IN/OUT endpoint pair as a blocking
// io.ReadWriteCloser, satisfying player.Transport.
type USB struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	readTimeout time.Duration
}

// OpenUSB opens the controller by vendor/product ID and claims the first
// interface's bulk endpoints.
func OpenUSB(vendorID, productID uint16, readTimeout time.Duration) (*USB, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vendorID), gousb.ID(productID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: open usb device: %w", err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: usb device not found (VID:0x%04x PID:0x%04x)", vendorID, productID)
	}

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: set usb config: %w", err)
	}

	intf, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: claim usb interface: %w", err)
	}

	epOut, err := intf.OutEndpoint(1)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: open out endpoint: %w", err)
	}

	epIn, err := intf.InEndpoint(0x81)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: open in endpoint: %w", err)
	}

	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}

	return &USB{
		ctx:         ctx,
		device:      device,
		config:      config,
		intf:        intf,
		epOut:       epOut,
		epIn:        epIn,
		readTimeout: readTimeout,
	}, nil
}

func (u *USB) Write(p []byte) (int, error) {
	n, err := u.epOut.Write(p)
	if err != nil {
		return n, fmt.Errorf("transport: usb write: %w", err)
	}
	return n, nil
}

func (u *USB) Read(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), u.readTimeout)
	defer cancel()

	n, err := u.epIn.ReadContext(ctx, p)
	if err != nil {
		return n, fmt.Errorf("transport: usb read: %w", err)
	}
	return n, nil
}

func (u *USB) Close() error {
	if u.intf != nil {
		u.intf.Close()
	}
	if u.config != nil {
		u.config.Close()
	}
	if u.device != nil {
		u.device.Close()
	}
	if u.ctx != nil {
		u.ctx.Close()
	}
	return nil
}
