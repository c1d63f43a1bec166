package accel

import (
	"context"
	"fmt"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/i2c"
)

const (
	regRange         = 0x22
	regLatch         = 0x1C
	regSlopeSettings = 0x12
	regSlopeDet      = 0x1A
	regWatchdog      = 0x2E
	regInterrupts    = 0x18
)

const BMA220DefaultAddress = 0x0A

// BMA220 represents Bosh BMA220 accelerometer
type BMA220 struct {
	dev *i2c.Device
}

func NewBMA220(line bushal.I2CLine) (*BMA220, error) {
	dev, err := i2c.NewDevice(line, BMA220DefaultAddress)
	if err != nil {
		return nil, fmt.Errorf("bma220: %w", err)
	}
	return &BMA220{dev: dev}, nil
}

/*
en_slope_x/y/z (0x1A.5-3) enable slope detection per axis
slope_th (0x12[5:2]) threshold, 1 LSB is 1 LSB of acc_data
slope_dur (0x12[1:0]) consecutive points above threshold ("00" = 1 ... "11" = 4)
slope_filt (0x12.6) '0' unfiltered, '1' filtered data is evaluated
slope_int (0x18.0) whether slope interrupt has been triggered
*/
var motionDetectionSetup = []struct {
	reg   byte
	value byte
	what  string
}{
	{regRange, 0x03, "detection sensitivity"},
	// permanent interrupt latch lat_int[2:0] = 111
	{regLatch, 0b01110000, "interrupt settings"},
	{regSlopeDet, 0b00111000, "slope detection"},
	// default 0x45
	{regSlopeSettings, 0x45, "slope detection settings"},
	{regWatchdog, 0x06, "watchdog settings"},
}

func (b *BMA220) InitMotionDetection(ctx context.Context) error {
	for _, step := range motionDetectionSetup {
		if err := b.dev.WriteRegister(ctx, step.reg, step.value); err != nil {
			return fmt.Errorf("bma220: could not set %s: %w", step.what, err)
		}
	}
	return nil
}

func (b *BMA220) CheckMotionInterrupt(ctx context.Context) (bool, error) {
	var buf [1]byte
	if err := b.dev.ReadRegister(ctx, regInterrupts, buf[:]); err != nil {
		return false, fmt.Errorf("bma220: could not read interrupt register: %w", err)
	}
	// slope detection is on bit 0
	return buf[0]&0x01 == 1, nil
}

func (b *BMA220) ResetMotionInterrupt(ctx context.Context) error {
	// reset_int is bit 7 of the latch register
	if err := b.dev.WriteRegister(ctx, regLatch, 0b11110000); err != nil {
		return fmt.Errorf("bma220: could not reset interrupt latch: %w", err)
	}
	return nil
}
