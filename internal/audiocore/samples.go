package audiocore

import "unsafe"

// Int16Bytes reinterprets samples as their in-memory bytes.
func Int16Bytes(s []int16) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), 2*len(s))
}

// BytesInt16 reinterprets b as native-endian int16 samples. A trailing odd byte is ignored.
func BytesInt16(b []byte) []int16 {
	if len(b) < 2 {
		return nil
	}
	return unsafe.Slice((*int16)(unsafe.Pointer(&b[0])), len(b)/2)
}
