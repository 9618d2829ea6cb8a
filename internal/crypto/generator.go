package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
)

const (
	lowercaseChars = "abcdefghijkmnopqrstuvwxyz"
	uppercaseChars = "ABCDEFGHIJKLMNPQRSTUVWXYZ"
	numberChars    = "23456789"
	specialChars   = "!@#$%^&*"

	ambiguousLowercase = "l"
	ambiguousUppercase = "O"
	ambiguousNumbers   = "01"

	// fallbackLength replaces a length below 1.
	fallbackLength = 10

	// MaxLength is the longest password the HTTP API and CLI will produce.
	MaxLength = 128
)

var ErrLengthTooLong = errors.New("password length must be at most 128")

// GenerationOptions configures the password generator.
// The JSON layout is the persisted form of the generator settings.
type GenerationOptions struct {
	Length       int  `json:"length"`
	Ambiguous    bool `json:"ambiguous"`
	Uppercase    bool `json:"uppercase"`
	MinUppercase int  `json:"minUppercase"`
	Lowercase    bool `json:"lowercase"`
	MinLowercase int  `json:"minLowercase"`
	Number       bool `json:"number"`
	MinNumber    int  `json:"minNumber"`
	Special      bool `json:"special"`
	MinSpecial   int  `json:"minSpecial"`
}

// PartialOptions carries caller-supplied overrides.
// Nil fields mean "not supplied" and fall back to the base options.
type PartialOptions struct {
	Length       *int  `json:"length,omitempty"`
	Ambiguous    *bool `json:"ambiguous,omitempty"`
	Uppercase    *bool `json:"uppercase,omitempty"`
	MinUppercase *int  `json:"minUppercase,omitempty"`
	Lowercase    *bool `json:"lowercase,omitempty"`
	MinLowercase *int  `json:"minLowercase,omitempty"`
	Number       *bool `json:"number,omitempty"`
	MinNumber    *int  `json:"minNumber,omitempty"`
	Special      *bool `json:"special,omitempty"`
	MinSpecial   *int  `json:"minSpecial,omitempty"`
}

// DefaultGenerationOptions returns the generator defaults: 14 characters,
// letters and numbers, no special characters, no ambiguous glyphs.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Length:       14,
		Ambiguous:    false,
		Uppercase:    true,
		MinUppercase: 1,
		Lowercase:    true,
		MinLowercase: 1,
		Number:       true,
		MinNumber:    1,
		Special:      false,
		MinSpecial:   1,
	}
}

// Merge overlays the supplied fields of p onto base.
func Merge(base GenerationOptions, p PartialOptions) GenerationOptions {
	out := base
	setInt(&out.Length, p.Length)
	setBool(&out.Ambiguous, p.Ambiguous)
	setBool(&out.Uppercase, p.Uppercase)
	setInt(&out.MinUppercase, p.MinUppercase)
	setBool(&out.Lowercase, p.Lowercase)
	setInt(&out.MinLowercase, p.MinLowercase)
	setBool(&out.Number, p.Number)
	setInt(&out.MinNumber, p.MinNumber)
	setBool(&out.Special, p.Special)
	setInt(&out.MinSpecial, p.MinSpecial)
	return out
}

// Normalize corrects out-of-range options instead of rejecting them.
// A disabled class contributes no minimum. If every class is disabled,
// lowercase is enabled so there is always something to draw from.
func Normalize(o GenerationOptions) GenerationOptions {
	if !o.Uppercase && !o.Lowercase && !o.Number && !o.Special {
		o.Lowercase = true
	}

	o.MinUppercase = normalizeMin(o.Uppercase, o.MinUppercase)
	o.MinLowercase = normalizeMin(o.Lowercase, o.MinLowercase)
	o.MinNumber = normalizeMin(o.Number, o.MinNumber)
	o.MinSpecial = normalizeMin(o.Special, o.MinSpecial)

	if o.Length < 1 {
		o.Length = fallbackLength
	}

	if minLength := sumMins(o.MinUppercase, o.MinLowercase, o.MinNumber, o.MinSpecial); o.Length < minLength {
		o.Length = minLength
	}

	return o
}

// sumMins adds non-negative minimums, saturating at math.MaxInt.
func sumMins(mins ...int) int {
	sum := 0
	for _, n := range mins {
		if n > math.MaxInt-sum {
			return math.MaxInt
		}
		sum += n
	}
	return sum
}

func normalizeMin(enabled bool, n int) int {
	if !enabled {
		return 0
	}
	if n < 0 {
		return 1
	}
	return n
}

// RandomSource draws uniformly distributed integers in [lo, hi], both inclusive.
// Implementations used for real passwords must be cryptographically secure.
type RandomSource interface {
	RandomNumber(lo, hi int) (int, error)
}

type cryptoSource struct{}

// RandomNumber draws from crypto/rand.
func (cryptoSource) RandomNumber(lo, hi int) (int, error) {
	if hi < lo {
		return 0, fmt.Errorf("invalid range [%d, %d]", lo, hi)
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(hi-lo)+1))
	if err != nil {
		return 0, err
	}
	return lo + int(n.Int64()), nil
}

// SecureSource is the crypto/rand backed RandomSource.
var SecureSource RandomSource = cryptoSource{}

// Generator produces passwords from a RandomSource.
type Generator struct {
	rng RandomSource
}

// NewGenerator creates a Generator. A nil source uses SecureSource.
func NewGenerator(rng RandomSource) *Generator {
	if rng == nil {
		rng = SecureSource
	}
	return &Generator{rng: rng}
}

// Generate merges p over the defaults and produces a password with SecureSource.
func Generate(p PartialOptions) (string, error) {
	return NewGenerator(nil).Generate(Merge(DefaultGenerationOptions(), p))
}

type slot byte

const (
	slotLowercase slot = 'l'
	slotUppercase slot = 'u'
	slotNumber    slot = 'n'
	slotSpecial   slot = 's'
	slotAny       slot = 'a'
)

// Generate creates a password. Minimum class counts are met exactly by a
// shuffled position plan; the remaining positions draw from every enabled class.
func (g *Generator) Generate(opts GenerationOptions) (string, error) {
	o := Normalize(opts)

	plan := positionPlan(o)
	if err := g.shuffle(plan); err != nil {
		return "", fmt.Errorf("generate password: shuffle: %w", err)
	}

	sets := characterSets(o)

	result := make([]byte, len(plan))
	for i, s := range plan {
		ch, err := g.randChar(sets[s])
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		result[i] = ch
	}

	return string(result), nil
}

func positionPlan(o GenerationOptions) []slot {
	plan := make([]slot, 0, o.Length)
	plan = appendSlots(plan, slotLowercase, o.MinLowercase)
	plan = appendSlots(plan, slotUppercase, o.MinUppercase)
	plan = appendSlots(plan, slotNumber, o.MinNumber)
	plan = appendSlots(plan, slotSpecial, o.MinSpecial)
	return appendSlots(plan, slotAny, o.Length-len(plan))
}

func appendSlots(plan []slot, s slot, n int) []slot {
	for i := 0; i < n; i++ {
		plan = append(plan, s)
	}
	return plan
}

func characterSets(o GenerationOptions) map[slot]string {
	lower, upper, number := lowercaseChars, uppercaseChars, numberChars
	if o.Ambiguous {
		lower += ambiguousLowercase
		upper += ambiguousUppercase
		number += ambiguousNumbers
	}

	var pool string
	if o.Lowercase {
		pool += lower
	}
	if o.Uppercase {
		pool += upper
	}
	if o.Number {
		pool += number
	}
	if o.Special {
		pool += specialChars
	}

	return map[slot]string{
		slotLowercase: lower,
		slotUppercase: upper,
		slotNumber:    number,
		slotSpecial:   specialChars,
		slotAny:       pool,
	}
}

// randChar picks a random character from charset.
func (g *Generator) randChar(charset string) (byte, error) {
	n, err := g.rng.RandomNumber(0, len(charset)-1)
	if err != nil {
		return 0, err
	}
	return charset[n], nil
}

// shuffle performs a Fisher-Yates shuffle.
func (g *Generator) shuffle(plan []slot) error {
	for i := len(plan) - 1; i > 0; i-- {
		j, err := g.rng.RandomNumber(0, i)
		if err != nil {
			return err
		}
		plan[i], plan[j] = plan[j], plan[i]
	}
	return nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
