package accel

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/mklimuk/bushal"
	"github.com/mklimuk/bushal/i2c"
)

// MPU-6050 register map (RM-MPU-6000A-00 rev 4.2).
const (
	regAccelXoutH = 0x3B
	regPwrMgmt1   = 0x6B
	regWhoAmI     = 0x75
)

const (
	MPU6050DefaultAddress = 0x68
	// MPU6050AltAddress is selected by pulling AD0 high.
	MPU6050AltAddress = 0x69
	// SampleSize is the accelerometer, temperature and gyroscope block length.
	SampleSize = 14
)

// Sample holds raw two's complement readings of one burst read.
type Sample struct {
	AX, AY, AZ int16
	GX, GY, GZ int16
}

// Channels returns accelerometer X/Y/Z followed by gyroscope X/Y/Z.
func (s Sample) Channels() [6]int16 {
	return [6]int16{s.AX, s.AY, s.AZ, s.GX, s.GY, s.GZ}
}

// Bytes encodes the six channels as big-endian int16, the same order as
// Channels.
func (s Sample) Bytes() []byte {
	out := make([]byte, 0, 12)
	for _, v := range s.Channels() {
		out = binary.BigEndian.AppendUint16(out, uint16(v))
	}
	return out
}

func (s Sample) String() string {
	return fmt.Sprintf("Accel: X=%d Y=%d Z=%d | Gyro: X=%d Y=%d Z=%d", s.AX, s.AY, s.AZ, s.GX, s.GY, s.GZ)
}

// DecodeSample converts the 14-byte block read from ACCEL_XOUT_H. Bytes 6-7
// hold the die temperature and are not part of the sample.
func DecodeSample(raw []byte) (Sample, error) {
	if len(raw) != SampleSize {
		return Sample{}, fmt.Errorf("%w: sample block of %d bytes, expected %d", bushal.ErrInvalidLength, len(raw), SampleSize)
	}
	return Sample{
		AX: bushal.Int16(raw[0:2]),
		AY: bushal.Int16(raw[2:4]),
		AZ: bushal.Int16(raw[4:6]),
		GX: bushal.Int16(raw[8:10]),
		GY: bushal.Int16(raw[10:12]),
		GZ: bushal.Int16(raw[12:14]),
	}, nil
}

type MPU6050Config struct {
	Address uint8
}

type MPU6050Option func(*MPU6050Config)

func WithMPU6050Address(address uint8) MPU6050Option {
	return func(c *MPU6050Config) {
		c.Address = address
	}
}

// MPU6050 represents InvenSense MPU-6050 accelerometer/gyroscope
type MPU6050 struct {
	dev *i2c.Device
	buf [SampleSize]byte
}

func NewMPU6050(line bushal.I2CLine, opts ...MPU6050Option) (*MPU6050, error) {
	config := MPU6050Config{Address: MPU6050DefaultAddress}
	for _, opt := range opts {
		opt(&config)
	}
	dev, err := i2c.NewDevice(line, config.Address)
	if err != nil {
		return nil, fmt.Errorf("mpu6050: %w", err)
	}
	return &MPU6050{dev: dev}, nil
}

// Init wakes the device: PWR_MGMT_1 is cleared, which drops the SLEEP bit
// and selects the internal oscillator.
func (m *MPU6050) Init(ctx context.Context) error {
	if err := m.dev.WriteRegister(ctx, regPwrMgmt1, 0x00); err != nil {
		return fmt.Errorf("mpu6050: could not wake device: %w", err)
	}
	return nil
}

// WhoAmI returns the identity register, 0x68 on genuine parts.
func (m *MPU6050) WhoAmI(ctx context.Context) (byte, error) {
	var id [1]byte
	if err := m.dev.ReadRegister(ctx, regWhoAmI, id[:]); err != nil {
		return 0, fmt.Errorf("mpu6050: could not read WHO_AM_I: %w", err)
	}
	return id[0], nil
}

// ReadSample burst reads the measurement block in a single transaction so
// all channels come from the same sampling instant.
func (m *MPU6050) ReadSample(ctx context.Context) (Sample, error) {
	if err := m.dev.ReadRegister(ctx, regAccelXoutH, m.buf[:]); err != nil {
		return Sample{}, fmt.Errorf("mpu6050: could not read sample: %w", err)
	}
	return DecodeSample(m.buf[:])
}
