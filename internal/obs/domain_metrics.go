package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PriceQuotesTotal counts price calculations by outcome.
	PriceQuotesTotal *prometheus.CounterVec
	// InvoicesIssuedTotal counts invoices issued.
	InvoicesIssuedTotal prometheus.Counter
	// StayChargesRecordedTotal counts stay charges created at bed transfer.
	StayChargesRecordedTotal prometheus.Counter
	// GlobalDiscountClampedTotal counts global discounts reduced to fit the payable amount.
	GlobalDiscountClampedTotal prometheus.Counter
	// IdentifierCollisionsTotal counts sequence collisions during identifier allocation.
	IdentifierCollisionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers billing-specific
// collectors. Until it runs the package vars stay nil and callers skip them.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PriceQuotesTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_quotes_total",
			Help:      "Count of price calculations by outcome.",
		}, []string{"result"}))
		InvoicesIssuedTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_issued_total",
			Help:      "Total number of invoices issued.",
		}))
		StayChargesRecordedTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stay_charges_recorded_total",
			Help:      "Total number of stay charges recorded at bed transfer.",
		}))
		GlobalDiscountClampedTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "global_discount_clamped_total",
			Help:      "Number of global discounts clamped to the payable amount.",
		}))
		IdentifierCollisionsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identifier_collisions_total",
			Help:      "Count of identifier sequence collisions by prefix.",
		}, []string{"prefix"}))
	})
}
