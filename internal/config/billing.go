package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingPolicy controls overdue handling and payment reminders. It lives in
// billing.yml so operations can tune it without a redeploy.
type BillingPolicy struct {
	// OverdueGraceDays is how many days past the due date an invoice may sit
	// before the sweep marks it overdue.
	OverdueGraceDays int `mapstructure:"overdueGraceDays"`
	// ReminderLeadDays is how many days before the due date a payment
	// reminder goes out.
	ReminderLeadDays int `mapstructure:"reminderLeadDays"`
	// DepositDueDays / FinalDueDays drive the payment schedule shown to
	// clients: deposit due N days after invoicing, balance due M days after.
	DepositDueDays int `mapstructure:"depositDueDays"`
	FinalDueDays   int `mapstructure:"finalDueDays"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		OverdueGraceDays: 1,
		ReminderLeadDays: 3,
		DepositDueDays:   7,
		FinalDueDays:     30,
	}
}

type BillingPolicyHolder struct {
	current atomic.Value // holds BillingPolicy
}

func NewBillingPolicyHolder() (*BillingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/aegis")
	v.AddConfigPath(".")

	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.overdueGraceDays", defaults.OverdueGraceDays)
	v.SetDefault("billing.reminderLeadDays", defaults.ReminderLeadDays)
	v.SetDefault("billing.depositDueDays", defaults.DepositDueDays)
	v.SetDefault("billing.finalDueDays", defaults.FinalDueDays)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return nil, err
	}
	if err := validateBillingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingPolicy
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-policy] reload failed: %v", err)
			return
		}
		if err := validateBillingPolicy(updated); err != nil {
			log.Printf("[billing-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingPolicyHolder returns a holder pinned to the given policy,
// with no config file watching. Intended for tests and one-off tools.
func NewStaticBillingPolicyHolder(p BillingPolicy) *BillingPolicyHolder {
	h := &BillingPolicyHolder{}
	h.current.Store(p)
	return h
}

func (h *BillingPolicyHolder) Get() BillingPolicy {
	return h.current.Load().(BillingPolicy)
}

func validateBillingPolicy(p BillingPolicy) error {
	if p.OverdueGraceDays < 0 {
		return errors.New("billing.overdueGraceDays cannot be negative")
	}
	if p.ReminderLeadDays < 0 {
		return errors.New("billing.reminderLeadDays cannot be negative")
	}
	if p.DepositDueDays <= 0 || p.FinalDueDays <= 0 {
		return errors.New("billing due-day offsets must be positive")
	}
	if p.FinalDueDays <= p.DepositDueDays {
		return errors.New("billing.finalDueDays must be after depositDueDays")
	}
	return nil
}
