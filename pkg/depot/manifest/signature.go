package manifest

import "google.golang.org/protobuf/encoding/protowire"

const fieldSignatureData protowire.Number = 1

func (s *Signature) encode(mode EncodeMode) []byte {
	e := &encoder{mode: mode}
	e.bytes(fieldSignatureData, s.Data)
	return e.buf
}

func decodeSignature(b []byte) (Signature, error) {
	var s Signature
	err := decodeFields(b, func(f field) error {
		if f.num != fieldSignatureData {
			return nil
		}
		var err error
		s.Data, err = f.bytes()
		return err
	})
	return s, err
}
