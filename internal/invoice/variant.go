package invoice

// Variant is the schema variant of an invoice. It decides which fields are
// visible and required and how tax is derived.
type Variant string

const (
	VariantTriplicate       Variant = "triplicate"
	VariantDuplicate        Variant = "duplicate"
	VariantSummarized       Variant = "summarized"
	VariantCustoms          Variant = "customs"
	VariantReturnTriplicate Variant = "return_triplicate"
	VariantReturnDuplicate  Variant = "return_duplicate"
	VariantZeroRated        Variant = "zero_rated"
	VariantNonFilable       Variant = "non_filable"
)

// Traits describe how a variant shapes the record. TaxFixedZero pins the tax
// amount to zero whatever the rate; TaxExempt only allows a zero tax amount.
type Traits struct {
	TaxFixedZero         bool
	TaxExempt            bool
	RequiresCounterparty bool
	SplitDocumentNo      bool
	HasSummaryCount      bool
	HasCertificateNo     bool
	IsReturn             bool
}

var variantTraits = map[Variant]Traits{
	VariantTriplicate:       {RequiresCounterparty: true, SplitDocumentNo: true},
	VariantDuplicate:        {SplitDocumentNo: true},
	VariantSummarized:       {RequiresCounterparty: true, HasSummaryCount: true},
	VariantCustoms:          {HasCertificateNo: true},
	VariantReturnTriplicate: {RequiresCounterparty: true, SplitDocumentNo: true, IsReturn: true},
	VariantReturnDuplicate:  {SplitDocumentNo: true, IsReturn: true},
	VariantZeroRated:        {TaxFixedZero: true, RequiresCounterparty: true, SplitDocumentNo: true},
	VariantNonFilable:       {TaxExempt: true, HasCertificateNo: true},
}

// returnPairs maps a standard variant to its return/allowance counterpart.
var returnPairs = map[Variant]Variant{
	VariantTriplicate: VariantReturnTriplicate,
	VariantDuplicate:  VariantReturnDuplicate,
}

var directionVariants = map[Direction][]Variant{
	DirectionInput: {
		VariantTriplicate,
		VariantDuplicate,
		VariantSummarized,
		VariantCustoms,
		VariantReturnTriplicate,
		VariantReturnDuplicate,
		VariantNonFilable,
	},
	DirectionOutput: {
		VariantTriplicate,
		VariantDuplicate,
		VariantSummarized,
		VariantReturnTriplicate,
		VariantReturnDuplicate,
		VariantZeroRated,
	},
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	_, ok := variantTraits[v]
	return ok
}

// Traits returns the variant's traits. Unknown variants have none.
func (v Variant) Traits() Traits {
	return variantTraits[v]
}

// ReturnVariant returns the return/allowance counterpart of v.
func (v Variant) ReturnVariant() (Variant, bool) {
	r, ok := returnPairs[v]
	return r, ok
}

// Variants lists the variants offered by the editor for a direction.
func Variants(d Direction) []Variant {
	return append([]Variant(nil), directionVariants[d]...)
}

// Allows reports whether the editor for d offers variant v.
func (d Direction) Allows(v Variant) bool {
	for _, candidate := range directionVariants[d] {
		if candidate == v {
			return true
		}
	}
	return false
}

// StandardVariant returns the standard variant a return variant pairs with.
func (v Variant) StandardVariant() (Variant, bool) {
	for standard, ret := range returnPairs {
		if ret == v {
			return standard, true
		}
	}
	return "", false
}
