package module

// Call slots are the Call instruction's single u32 operand. A local call
// slot is simply the callee's index into the current module's
// Definitions/Sources. A foreign (cross-module) call slot additionally
// carries the resolved module_id assigned by the builder's topological load
// order (see GLOSSARY: "Link"), packed into the high bits so the VM can
// tell the two apart without a second instruction field.
const foreignCallBit = uint32(1) << 31

// EncodeLocalCallSlot returns the call_slot for an in-module call.
func EncodeLocalCallSlot(functionSlot uint32) uint32 {
	return functionSlot &^ foreignCallBit
}

// EncodeForeignCallSlot returns the call_slot for a cross-module call,
// packing moduleID into bits 16..30 and functionSlot into bits 0..15. This
// is ample range for any real Mluva project's import graph and function
// count.
func EncodeForeignCallSlot(moduleID, functionSlot uint32) uint32 {
	return foreignCallBit | (moduleID&0x7fff)<<16 | (functionSlot & 0xffff)
}

// DecodeCallSlot splits a call_slot back into (isForeign, moduleID,
// functionSlot). moduleID is meaningless when isForeign is false.
func DecodeCallSlot(slot uint32) (isForeign bool, moduleID uint32, functionSlot uint32) {
	if slot&foreignCallBit == 0 {
		return false, 0, slot
	}
	rest := slot &^ foreignCallBit
	return true, (rest >> 16) & 0x7fff, rest & 0xffff
}
