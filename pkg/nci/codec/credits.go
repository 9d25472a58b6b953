package codec

import "fmt"

// ConnCredit is one (connection ID, credits granted) pair within
// CORE_CONN_CREDITS_NTF.
type ConnCredit struct {
	CID     uint8
	Credits uint8
}

// ConnCreditsNtf is CORE_CONN_CREDITS_NTF: [n, (cid, credits)*n].
type ConnCreditsNtf struct {
	Credits []ConnCredit
}

// ParseConnCreditsNtf decodes CORE_CONN_CREDITS_NTF. Total length must be
// exactly 1+2n for the declared entry count n.
func ParseConnCreditsNtf(payload []byte) (ConnCreditsNtf, error) {
	if len(payload) < 1 {
		return ConnCreditsNtf{}, fmt.Errorf("codec: CORE_CONN_CREDITS_NTF empty payload")
	}
	n := int(payload[0])
	want := 1 + 2*n
	if len(payload) != want {
		return ConnCreditsNtf{}, fmt.Errorf("codec: CORE_CONN_CREDITS_NTF length %d, want %d (n=%d)", len(payload), want, n)
	}

	out := ConnCreditsNtf{Credits: make([]ConnCredit, n)}
	for i := 0; i < n; i++ {
		out.Credits[i] = ConnCredit{
			CID:     payload[1+2*i],
			Credits: payload[2+2*i],
		}
	}
	return out, nil
}
