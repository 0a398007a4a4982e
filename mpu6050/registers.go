package mpu6050

// MPU6050 register map, from the InvenSense MPU-6000/6050 register map rev 4.2.
const (
	MPU_ADDRESS     = 0x68 // AD0 low
	MPU_ADDRESS_ALT = 0x69 // AD0 high

	MPUREG_SMPLRT_DIV   = 0x19
	MPUREG_CONFIG       = 0x1A
	MPUREG_GYRO_CONFIG  = 0x1B
	MPUREG_ACCEL_CONFIG = 0x1C
	MPUREG_INT_ENABLE   = 0x38
	MPUREG_INT_STATUS   = 0x39

	MPUREG_ACCEL_XOUT_H = 0x3B
	MPUREG_ACCEL_XOUT_L = 0x3C
	MPUREG_ACCEL_YOUT_H = 0x3D
	MPUREG_ACCEL_YOUT_L = 0x3E
	MPUREG_ACCEL_ZOUT_H = 0x3F
	MPUREG_ACCEL_ZOUT_L = 0x40
	MPUREG_TEMP_OUT_H   = 0x41
	MPUREG_TEMP_OUT_L   = 0x42
	MPUREG_GYRO_XOUT_H  = 0x43
	MPUREG_GYRO_XOUT_L  = 0x44
	MPUREG_GYRO_YOUT_H  = 0x45
	MPUREG_GYRO_YOUT_L  = 0x46
	MPUREG_GYRO_ZOUT_H  = 0x47
	MPUREG_GYRO_ZOUT_L  = 0x48

	MPUREG_PWR_MGMT_1 = 0x6B
	MPUREG_PWR_MGMT_2 = 0x6C
	MPUREG_WHO_AM_I   = 0x75

	BIT_H_RESET = 0x80
	BIT_SLEEP   = 0x40

	// FS_SEL / AFS_SEL live in bits 4:3 of GYRO_CONFIG / ACCEL_CONFIG.
	FS_SEL_SHIFT = 3
	FS_SEL_MASK  = 0x03

	WHO_AM_I_VAL = 0x68

	// Accel x,y,z + temperature + gyro x,y,z, two bytes each.
	burstLen = 14
)
