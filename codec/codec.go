package codec

// Codec encodes/decodes values V to []byte at the layer boundary.
// Every payload stored in a layer passed through a Codec exactly once,
// so adapters never see untyped values.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
