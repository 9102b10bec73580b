package decorator

func NewThread(ID, PID string) *Thread {
	realPID := ""
	if ID != PID {
		realPID = PID
	}
	return &Thread{ID: ID, PID: realPID}
}

func CheckThread(thread *Thread, ID string) *Thread {
	if thread == nil {
		return &Thread{ID: ID}
	}
	if thread.ID == "" {
		thread.ID = ID
	}
	return thread
}

// Reply builds the thread decorator of a reply. The received order of the
// counterparty's message is recorded under sender.
func Reply(received *Thread, sender string, senderOrder int) *Thread {
	t := &Thread{SenderOrder: senderOrder}
	if received == nil {
		return t
	}
	t.ID = received.ID
	t.PID = received.PID
	if sender != "" {
		t.ReceivedOrders = map[string]int{sender: received.SenderOrder}
	}
	return t
}
