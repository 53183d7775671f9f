package scheduler

// SystemID identifies a registered system. Lower IDs run first when several
// systems are due at the same timestamp.
type SystemID int

// Token is a pending run of one system.
type Token struct {
	Due    Time
	System SystemID
}

// Before orders tokens by due time, then by system ID.
func (t Token) Before(o Token) bool {
	if t.Due != o.Due {
		return t.Due < o.Due
	}
	return t.System < o.System
}

// tokenQueue implements heap.Interface as a min-heap of tokens.
type tokenQueue []Token

func (q tokenQueue) Len() int           { return len(q) }
func (q tokenQueue) Less(i, j int) bool { return q[i].Before(q[j]) }
func (q tokenQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *tokenQueue) Push(x any) {
	*q = append(*q, x.(Token))
}

func (q *tokenQueue) Pop() any {
	old := *q
	n := len(old)
	tok := old[n-1]
	*q = old[:n-1]
	return tok
}
