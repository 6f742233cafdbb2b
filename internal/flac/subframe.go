package flac

import "fmt"

// SubframeType is the prediction method of a subframe.
type SubframeType uint8

const (
	SubframeConstant SubframeType = iota
	SubframeVerbatim
	SubframeFixed
	SubframeLPC
)

func (t SubframeType) String() string {
	switch t {
	case SubframeConstant:
		return "constant"
	case SubframeVerbatim:
		return "verbatim"
	case SubframeFixed:
		return "fixed"
	case SubframeLPC:
		return "lpc"
	}
	return fmt.Sprintf("SubframeType(%d)", uint8(t))
}

// Subframe is one channel's worth of decoded samples within a frame.
// Samples are signed 32-bit regardless of the stream bit depth, with wasted
// bits already restored.
type Subframe struct {
	Type       SubframeType
	Order      int
	WastedBits uint
	Samples    []int32
}

const (
	maxFixedOrder = 4
	maxLPCOrder   = 32
)

func invalidData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

// decodeSubframe decodes blockSize samples coded at bps bits into sf,
// reusing its sample storage where it is large enough.
func decodeSubframe(br *bitReader, sf *Subframe, blockSize int, bps uint) error {
	pad, err := br.readBits(1)
	if err != nil {
		return err
	}
	if pad != 0 {
		return invalidData("subframe padding bit set")
	}

	code, err := br.readBits(6)
	if err != nil {
		return err
	}
	switch {
	case code == 0:
		sf.Type, sf.Order = SubframeConstant, 0
	case code == 1:
		sf.Type, sf.Order = SubframeVerbatim, 0
	case code >= 8 && code <= 8+maxFixedOrder:
		sf.Type, sf.Order = SubframeFixed, int(code-8)
	case code >= 32:
		sf.Type, sf.Order = SubframeLPC, int(code-31)
	default:
		return invalidData("reserved subframe type 0x%02X", code)
	}

	flag, err := br.readBits(1)
	if err != nil {
		return err
	}
	sf.WastedBits = 0
	if flag == 1 {
		k, err := br.readUnary()
		if err != nil {
			return err
		}
		sf.WastedBits = uint(k) + 1
	}
	if sf.WastedBits >= bps {
		return invalidData("%d wasted bits in a %d bit subframe", sf.WastedBits, bps)
	}
	width := bps - sf.WastedBits

	if cap(sf.Samples) < blockSize {
		sf.Samples = make([]int32, blockSize)
	}
	samples := sf.Samples[:blockSize]
	sf.Samples = samples

	switch sf.Type {
	case SubframeConstant:
		v, err := br.readSigned(width)
		if err != nil {
			return err
		}
		for i := range samples {
			samples[i] = int32(v)
		}
	case SubframeVerbatim:
		for i := range samples {
			v, err := br.readSigned(width)
			if err != nil {
				return err
			}
			samples[i] = int32(v)
		}
	case SubframeFixed:
		if err := decodeFixed(br, samples, sf.Order, width); err != nil {
			return err
		}
	case SubframeLPC:
		if err := decodeLPC(br, samples, sf.Order, width); err != nil {
			return err
		}
	}

	if sf.WastedBits > 0 {
		for i := range samples {
			samples[i] <<= sf.WastedBits
		}
	}
	return nil
}

func readWarmup(br *bitReader, samples []int32, order int, width uint) error {
	if order > len(samples) {
		return invalidData("predictor order %d exceeds block size %d", order, len(samples))
	}
	for i := 0; i < order; i++ {
		v, err := br.readSigned(width)
		if err != nil {
			return err
		}
		samples[i] = int32(v)
	}
	return nil
}

func decodeFixed(br *bitReader, samples []int32, order int, width uint) error {
	if err := readWarmup(br, samples, order, width); err != nil {
		return err
	}
	if err := decodeResidual(br, samples, order); err != nil {
		return err
	}
	restoreFixed(samples, order)
	return nil
}

func decodeLPC(br *bitReader, samples []int32, order int, width uint) error {
	if err := readWarmup(br, samples, order, width); err != nil {
		return err
	}

	precCode, err := br.readBits(4)
	if err != nil {
		return err
	}
	if precCode == 0xF {
		return invalidData("invalid LPC coefficient precision")
	}
	precision := uint(precCode) + 1

	shift, err := br.readSigned(5)
	if err != nil {
		return err
	}
	if shift < 0 {
		return invalidData("negative LPC shift %d", shift)
	}

	var coeffs [maxLPCOrder]int32
	for i := 0; i < order; i++ {
		c, err := br.readSigned(precision)
		if err != nil {
			return err
		}
		coeffs[i] = int32(c)
	}

	if err := decodeResidual(br, samples, order); err != nil {
		return err
	}
	restoreLPC(samples, coeffs[:order], uint(shift))
	return nil
}

// decodeResidual reads the partitioned Rice residual into samples[order:].
func decodeResidual(br *bitReader, samples []int32, order int) error {
	method, err := br.readBits(2)
	if err != nil {
		return err
	}
	var paramBits uint
	switch method {
	case 0:
		paramBits = 4
	case 1:
		paramBits = 5
	default:
		return invalidData("reserved residual coding method %d", method)
	}
	escape := uint64(1)<<paramBits - 1

	partOrder, err := br.readBits(4)
	if err != nil {
		return err
	}
	blockSize := len(samples)
	partitions := 1 << partOrder
	if blockSize%partitions != 0 {
		return invalidData("partition order %d does not divide block size %d", partOrder, blockSize)
	}
	perPart := blockSize >> partOrder
	if perPart < order {
		return invalidData("partition of %d samples shorter than predictor order %d", perPart, order)
	}

	i := order
	for p := 0; p < partitions; p++ {
		n := perPart
		if p == 0 {
			n -= order
		}
		k, err := br.readBits(paramBits)
		if err != nil {
			return err
		}

		if k == escape {
			w, err := br.readBits(5)
			if err != nil {
				return err
			}
			if w == 0 {
				return invalidData("escaped residual partition with zero bit width")
			}
			for end := i + n; i < end; i++ {
				v, err := br.readSigned(uint(w))
				if err != nil {
					return err
				}
				samples[i] = int32(v)
			}
			continue
		}

		for end := i + n; i < end; i++ {
			q, err := br.readUnary()
			if err != nil {
				return err
			}
			r, err := br.readBits(uint(k))
			if err != nil {
				return err
			}
			u := q<<k | r
			samples[i] = int32(int64(u>>1) ^ -int64(u&1))
		}
	}
	return nil
}

// restoreFixed turns residuals into samples with the fixed polynomial
// predictor of the given order.
func restoreFixed(s []int32, order int) {
	switch order {
	case 1:
		for i := 1; i < len(s); i++ {
			s[i] = int32(int64(s[i]) + int64(s[i-1]))
		}
	case 2:
		for i := 2; i < len(s); i++ {
			s[i] = int32(int64(s[i]) + 2*int64(s[i-1]) - int64(s[i-2]))
		}
	case 3:
		for i := 3; i < len(s); i++ {
			s[i] = int32(int64(s[i]) + 3*int64(s[i-1]) - 3*int64(s[i-2]) + int64(s[i-3]))
		}
	case 4:
		for i := 4; i < len(s); i++ {
			s[i] = int32(int64(s[i]) + 4*int64(s[i-1]) - 6*int64(s[i-2]) + 4*int64(s[i-3]) - int64(s[i-4]))
		}
	}
}

// restoreLPC adds the quantized linear prediction to each residual. The
// first coefficient weights the most recent sample.
func restoreLPC(s []int32, coeffs []int32, shift uint) {
	order := len(coeffs)
	for i := order; i < len(s); i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * int64(s[i-j-1])
		}
		s[i] = int32(int64(s[i]) + sum>>shift)
	}
}
