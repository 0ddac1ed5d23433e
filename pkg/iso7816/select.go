package iso7816

// SELECT COMMAND LOGIC (ISO 7816-4 §11.2.2):
// P1 picks the selection method, P2 combines the response type (b4-b3) and
// the occurrence (b2-b1). Readers probing an emulated card send
// SELECT by DF name, P2 00: "00 A4 04 00".

// SelectionMethod defines how the file is targeted (P1).
type SelectionMethod byte

const (
	SelectByFileID SelectionMethod = 0x00
	SelectByDFName SelectionMethod = 0x04
)

// SelectionControl defines what data to return (b4-b3 of P2).
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b0000_00_00
	ReturnFCP    SelectionControl = 0b0000_01_00
	ReturnNoData SelectionControl = 0b0000_11_00
)

// NewSelectCommand creates a SELECT command for the first or only occurrence.
func NewSelectCommand(cla Class, method SelectionMethod, ctrl SelectionControl, data []byte) *CommandAPDU {
	// T=0 cannot carry Lc and Le together; a case 3 SELECT relies on 61XX
	// and the client's GET RESPONSE instead.
	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}

	return NewCommandAPDU(cla, mustInstruction(INS_SELECT), byte(method), byte(ctrl), data, ne)
}

// SelectByAID selects an application by its name (AID).
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, ReturnFCI, aid)
}
