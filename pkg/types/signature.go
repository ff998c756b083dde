package types

import "fmt"

// ToEthereumSignature returns a copy of sig with the recovery byte in the 27/28 form.
// Accepts v as 0/1 or 27/28.
func ToEthereumSignature(sig []byte) ([]byte, error) {
	out, v, err := copySignature(sig)
	if err != nil {
		return nil, err
	}
	out[SignatureLength-1] = v + 27
	return out, nil
}

// ToRecoverableSignature returns a copy of sig with the recovery byte in the 0/1 form
// expected by go-ethereum's crypto.SigToPub. Accepts v as 0/1 or 27/28.
func ToRecoverableSignature(sig []byte) ([]byte, error) {
	out, v, err := copySignature(sig)
	if err != nil {
		return nil, err
	}
	out[SignatureLength-1] = v
	return out, nil
}

func copySignature(sig []byte) ([]byte, byte, error) {
	if len(sig) != SignatureLength {
		return nil, 0, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	v := sig[SignatureLength-1]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, 0, fmt.Errorf("%w: unsupported recovery id %d", ErrInvalidSignature, sig[SignatureLength-1])
	}
	out := make([]byte, SignatureLength)
	copy(out, sig)
	return out, v, nil
}
