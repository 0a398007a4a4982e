package wt901

// WT901 register map. Every register is a 16 bit little-endian word; register
// addresses count words, but the I2C burst read returns bytes.
const (
	WT_ADDRESS = 0x50

	WTREG_SAVE     = 0x00
	WTREG_CALSW    = 0x01
	WTREG_RSW      = 0x02
	WTREG_RRATE    = 0x03
	WTREG_BAUD     = 0x04
	WTREG_AXOFFSET = 0x05
	WTREG_AYOFFSET = 0x06
	WTREG_AZOFFSET = 0x07
	WTREG_GXOFFSET = 0x08
	WTREG_GYOFFSET = 0x09
	WTREG_GZOFFSET = 0x0A
	WTREG_HXOFFSET = 0x0B
	WTREG_HYOFFSET = 0x0C
	WTREG_HZOFFSET = 0x0D
	WTREG_IICADDR  = 0x1A
	WTREG_LEDOFF   = 0x1B

	WTREG_AX    = 0x34
	WTREG_AY    = 0x35
	WTREG_AZ    = 0x36
	WTREG_GX    = 0x37
	WTREG_GY    = 0x38
	WTREG_GZ    = 0x39
	WTREG_HX    = 0x3A
	WTREG_HY    = 0x3B
	WTREG_HZ    = 0x3C
	WTREG_ROLL  = 0x3D
	WTREG_PITCH = 0x3E
	WTREG_YAW   = 0x3F
	WTREG_TEMP  = 0x40

	WTREG_Q0 = 0x51
	WTREG_Q1 = 0x52
	WTREG_Q2 = 0x53
	WTREG_Q3 = 0x54

	// Acceleration, angular velocity, magnetic field and angle, 3 words each.
	burstLen = 24
)

// Output rates for WTREG_RRATE.
const (
	RATE_0_1HZ = 0x01
	RATE_0_5HZ = 0x02
	RATE_1HZ   = 0x03
	RATE_2HZ   = 0x04
	RATE_5HZ   = 0x05
	RATE_10HZ  = 0x06
	RATE_20HZ  = 0x07
	RATE_50HZ  = 0x08
	RATE_100HZ = 0x09
	RATE_200HZ = 0x0B
)
