package learning

const (
	DefaultWeight     = 1.0
	MinWeight         = 0.1
	DefaultWeightStep = 0.05

	DefaultOversold   = 30.0
	DefaultOverbought = 70.0

	MinOversold   = 20.0
	MaxOversold   = 35.0
	MinOverbought = 65.0
	MaxOverbought = 80.0

	// minSamples is the per-direction outcome count after which thresholds adapt.
	minSamples = 10
	lowRate    = 0.4
	highRate   = 0.7
	relaxStep  = 1.0
	tightStep  = 0.5
)

// Weights scores each indicator's contribution to one trend direction.
type Weights struct {
	RSI       float64 `json:"rsi"`
	MACD      float64 `json:"macd"`
	Bollinger float64 `json:"bollinger"`
}

func (w *Weights) shift(delta float64) {
	w.RSI = floorWeight(w.RSI + delta)
	w.MACD = floorWeight(w.MACD + delta)
	w.Bollinger = floorWeight(w.Bollinger + delta)
}

func floorWeight(v float64) float64 {
	if v < MinWeight {
		return MinWeight
	}
	return v
}

// Outcomes counts evaluated predictions for one direction.
type Outcomes struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

func (o Outcomes) Total() int { return o.Success + o.Failure }

func (o Outcomes) Rate() float64 {
	if o.Total() == 0 {
		return 0
	}
	return float64(o.Success) / float64(o.Total())
}

// Parameters are the adaptive weights and thresholds for one instrument.
type Parameters struct {
	Up         Weights  `json:"up"`
	Down       Weights  `json:"down"`
	Oversold   float64  `json:"oversold"`
	Overbought float64  `json:"overbought"`
	UpStats    Outcomes `json:"up_stats"`
	DownStats  Outcomes `json:"down_stats"`
	Step       float64  `json:"step"`
}

func DefaultParameters() Parameters {
	return NewParameters(DefaultWeightStep)
}

func NewParameters(step float64) Parameters {
	if step <= 0 {
		step = DefaultWeightStep
	}
	w := Weights{RSI: DefaultWeight, MACD: DefaultWeight, Bollinger: DefaultWeight}
	return Parameters{
		Up:         w,
		Down:       w,
		Oversold:   DefaultOversold,
		Overbought: DefaultOverbought,
		Step:       step,
	}
}

// AdjustWeights moves the weight triple of the predicted direction by one
// step and adapts that direction's threshold once enough outcomes exist.
func (p *Parameters) AdjustWeights(predictedUp, correct bool) {
	step := p.Step
	if step <= 0 {
		step = DefaultWeightStep
	}
	delta := step
	if !correct {
		delta = -step
	}

	if predictedUp {
		p.Up.shift(delta)
		p.UpStats.record(correct)
		p.adaptOversold()
		return
	}
	p.Down.shift(delta)
	p.DownStats.record(correct)
	p.adaptOverbought()
}

func (o *Outcomes) record(correct bool) {
	if correct {
		o.Success++
		return
	}
	o.Failure++
}

func (p *Parameters) adaptOversold() {
	if p.UpStats.Total() <= minSamples {
		return
	}
	switch rate := p.UpStats.Rate(); {
	case rate < lowRate:
		p.Oversold = clamp(p.Oversold-relaxStep, MinOversold, MaxOversold)
	case rate > highRate:
		p.Oversold = clamp(p.Oversold+tightStep, MinOversold, MaxOversold)
	}
}

func (p *Parameters) adaptOverbought() {
	if p.DownStats.Total() <= minSamples {
		return
	}
	switch rate := p.DownStats.Rate(); {
	case rate < lowRate:
		p.Overbought = clamp(p.Overbought+relaxStep, MinOverbought, MaxOverbought)
	case rate > highRate:
		p.Overbought = clamp(p.Overbought-tightStep, MinOverbought, MaxOverbought)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
