package formlogic

// FillSession drives one respondent through a form: each answer recomputes
// the visible fields, and Submit validates against the latest answers.
type FillSession struct {
	form      FormDefinition
	eval      Evaluator
	collector *Collector
}

func NewFillSession(form FormDefinition, eval Evaluator) *FillSession {
	return &FillSession{form: form, eval: eval, collector: NewCollector()}
}

func (s *FillSession) Form() FormDefinition { return s.form }

// Set records an answer and returns the visible field ids in display order.
func (s *FillSession) Set(fieldID string, v Value) []string {
	s.collector.SetAnswer(fieldID, v)
	return s.Visible()
}

func (s *FillSession) Visible() []string {
	return s.eval.VisibleFieldIDs(s.form, s.collector.Snapshot())
}

func (s *FillSession) Answers() AnswerMap { return s.collector.Snapshot() }

// Submit validates the current answers. When valid, the returned map holds
// only the answers of visible fields.
func (s *FillSession) Submit() (ValidationResult, AnswerMap) {
	answers := s.collector.Snapshot()
	res := s.eval.Validate(s.form, answers)
	if !res.Valid {
		return res, nil
	}
	return res, s.eval.FilterVisible(s.form, answers)
}

func (s *FillSession) Reset() { s.collector.Reset() }
