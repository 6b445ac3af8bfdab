package dsp

// BlockConvolver is direct-form time-domain convolution with history
// carryover across blocks. Grounded on libaudioverse's BlockConvolver
// (implementations/convolvers.hpp): a response length change zeros history.
type BlockConvolver struct {
	blockSize int
	response  []float32
	history   []float32
}

// NewBlockConvolver allocates a convolver that processes blockSize samples
// at a time.
func NewBlockConvolver(blockSize int) *BlockConvolver {
	return &BlockConvolver{blockSize: blockSize}
}

// SetResponse installs a new impulse response. length must be >= 1 (not
// checked: the DSP layer is garbage-in-garbage-out by design). If the
// length differs from the previous response, history is zeroed.
func (c *BlockConvolver) SetResponse(length int, h []float32) {
	if length != len(c.response) {
		c.history = make([]float32, length-1)
	}
	c.response = make([]float32, length)
	copy(c.response, h[:length])
}

// Convolve processes one block of input into output, maintaining history
// for the next call.
func (c *BlockConvolver) Convolve(in, out []float32) {
	rl := len(c.response)
	if rl == 0 {
		copy(out[:c.blockSize], make([]float32, c.blockSize))
		return
	}
	// Working buffer: the last (rl-1) samples of the previous block,
	// followed by this block's input. work[rl-1+n] is input sample n.
	work := make([]float32, len(c.history)+c.blockSize)
	copy(work, c.history)
	copy(work[len(c.history):], in[:c.blockSize])

	for n := 0; n < c.blockSize; n++ {
		var acc float32
		base := n + rl - 1
		for k := 0; k < rl; k++ {
			acc += c.response[k] * work[base-k]
		}
		out[n] = acc
	}
	// Carry the tail of `work` forward as history for the next block.
	tailLen := len(c.history)
	copy(c.history, work[len(work)-tailLen:])
}

// Reset zeros the convolution history without changing the response.
func (c *BlockConvolver) Reset() {
	for i := range c.history {
		c.history[i] = 0
	}
}
