package squall

import (
	"unsafe"
)

// bytesToRawType converts a []byte to []RawType using unsafe.Slice. The
// result aliases the input; callers must copy before the buffer is reposted
// to the board.
func bytesToRawType(sliceIn []byte) []RawType {
	if len(sliceIn) == 0 {
		return []RawType{}
	}
	outlength := uintptr(len(sliceIn)) * unsafe.Sizeof(sliceIn[0]) / unsafe.Sizeof(RawType(0))
	return unsafe.Slice((*RawType)(unsafe.Pointer(&sliceIn[0])), outlength)
}

// deinterleave splits one filled DMA buffer into fresh per-channel copies:
// channel A takes the even-indexed elements, channel B the odd-indexed
// ones, order preserved. The element width follows the pool's storage rule
// (one byte per sample for 8-bit converters, two bytes otherwise); narrow
// samples widen losslessly into RawType.
func deinterleave(buf []byte, bytesPerSample int) (chA, chB []RawType) {
	if bytesPerSample == 1 {
		n := len(buf) / 2
		chA = make([]RawType, n)
		chB = make([]RawType, n)
		for i := 0; i < n; i++ {
			chA[i] = RawType(buf[2*i])
			chB[i] = RawType(buf[2*i+1])
		}
		return chA, chB
	}
	elems := bytesToRawType(buf)
	n := len(elems) / 2
	chA = make([]RawType, n)
	chB = make([]RawType, n)
	for i := 0; i < n; i++ {
		chA[i] = elems[2*i]
		chB[i] = elems[2*i+1]
	}
	return chA, chB
}
