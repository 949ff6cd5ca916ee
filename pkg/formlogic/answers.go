package formlogic

// AnswerMap holds the current answer for each field id. A missing key means
// the field has not been answered.
type AnswerMap map[string]Value

func (m AnswerMap) Get(fieldID string) (Value, bool) {
	v, ok := m[fieldID]
	return v, ok
}

// Clone returns a deep copy; list payloads are not shared.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v.clone()
	}
	return out
}

// Collector accumulates answers for one fill session. It is not safe for
// concurrent use.
type Collector struct {
	answers AnswerMap
}

func NewCollector() *Collector {
	return &Collector{answers: AnswerMap{}}
}

// SetAnswer replaces the answer for fieldID. Answers to currently hidden
// fields are kept; the validator ignores them.
func (c *Collector) SetAnswer(fieldID string, v Value) {
	if c.answers == nil {
		c.answers = AnswerMap{}
	}
	c.answers[fieldID] = v.clone()
}

func (c *Collector) GetAnswer(fieldID string) (Value, bool) {
	v, ok := c.answers[fieldID]
	if !ok {
		return None(), false
	}
	return v.clone(), true
}

func (c *Collector) Snapshot() AnswerMap {
	return c.answers.Clone()
}

func (c *Collector) Reset() {
	c.answers = AnswerMap{}
}
