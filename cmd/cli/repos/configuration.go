package repos

import (
	"time"

	"github.com/temirov/gitid/internal/bulkapply"
	"github.com/temirov/gitid/internal/repos/discovery"
	"github.com/temirov/gitid/internal/report"
)

const (
	defaultRepositoryRootConstant               = "."
	discoveryConfigurationKeyConstant           = "discovery"
	applyConfigurationKeyConstant               = "apply"
	reportConfigurationKeyConstant              = "report"
	configurationRootsKeyConstant               = "roots"
	configurationMaxDepthKeyConstant            = "max_depth"
	configurationIncludeHiddenKeyConstant       = "include_hidden"
	configurationWorkersKeyConstant             = "workers"
	configurationConfidenceThresholdKeyConstant = "confidence_threshold"
	configurationOperationTimeoutKeyConstant    = "operation_timeout"
	configurationConcurrencyKeyConstant         = "concurrency"
	configurationFormatKeyConstant              = "format"
	configurationKeySeparatorConstant           = "."
)

// DiscoveryConfiguration controls repository scans.
type DiscoveryConfiguration struct {
	Roots         []string `mapstructure:"roots"`
	MaxDepth      int      `mapstructure:"max_depth"`
	IncludeHidden bool     `mapstructure:"include_hidden"`
	Workers       int      `mapstructure:"workers"`
}

// ApplyConfiguration controls bulk identity binding.
type ApplyConfiguration struct {
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold"`
	OperationTimeout    time.Duration `mapstructure:"operation_timeout"`
	Concurrency         int           `mapstructure:"concurrency"`
}

// ReportConfiguration controls report rendering.
type ReportConfiguration struct {
	Format string `mapstructure:"format"`
}

// Configuration groups the sections read by the repos commands.
type Configuration struct {
	Discovery DiscoveryConfiguration
	Apply     ApplyConfiguration
	Report    ReportConfiguration
}

// DefaultConfiguration returns baseline configuration values for repository commands.
func DefaultConfiguration() Configuration {
	discoveryDefaults := discovery.DefaultOptions()
	applyDefaults := bulkapply.DefaultOptions()
	return Configuration{
		Discovery: DiscoveryConfiguration{
			Roots:         []string{defaultRepositoryRootConstant},
			MaxDepth:      discoveryDefaults.MaxDepth,
			IncludeHidden: discoveryDefaults.IncludeHidden,
			Workers:       discoveryDefaults.Workers,
		},
		Apply: ApplyConfiguration{
			ConfidenceThreshold: applyDefaults.ConfidenceThreshold,
			OperationTimeout:    applyDefaults.OperationTimeout,
			Concurrency:         applyDefaults.Concurrency,
		},
		Report: ReportConfiguration{Format: string(report.FormatMarkdown)},
	}
}

// DefaultConfigurationValues produces Viper defaults for the discovery, apply and report sections.
func DefaultConfigurationValues() map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		configurationKey(discoveryConfigurationKeyConstant, configurationRootsKeyConstant):         defaults.Discovery.Roots,
		configurationKey(discoveryConfigurationKeyConstant, configurationMaxDepthKeyConstant):      defaults.Discovery.MaxDepth,
		configurationKey(discoveryConfigurationKeyConstant, configurationIncludeHiddenKeyConstant): defaults.Discovery.IncludeHidden,
		configurationKey(discoveryConfigurationKeyConstant, configurationWorkersKeyConstant):       defaults.Discovery.Workers,
		configurationKey(applyConfigurationKeyConstant, configurationConfidenceThresholdKeyConstant): defaults.Apply.ConfidenceThreshold,
		configurationKey(applyConfigurationKeyConstant, configurationOperationTimeoutKeyConstant):    defaults.Apply.OperationTimeout.String(),
		configurationKey(applyConfigurationKeyConstant, configurationConcurrencyKeyConstant):         defaults.Apply.Concurrency,
		configurationKey(reportConfigurationKeyConstant, configurationFormatKeyConstant):             defaults.Report.Format,
	}
}

func configurationKey(section string, key string) string {
	return section + configurationKeySeparatorConstant + key
}

func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration
	if len(sanitized.Discovery.Roots) == 0 {
		sanitized.Discovery.Roots = defaults.Discovery.Roots
	}
	if sanitized.Discovery.MaxDepth < 0 {
		sanitized.Discovery.MaxDepth = 0
	}
	if sanitized.Discovery.Workers <= 0 {
		sanitized.Discovery.Workers = defaults.Discovery.Workers
	}
	if bulkapply.ValidateConfidenceThreshold(sanitized.Apply.ConfidenceThreshold) != nil {
		sanitized.Apply.ConfidenceThreshold = defaults.Apply.ConfidenceThreshold
	}
	if sanitized.Apply.OperationTimeout <= 0 {
		sanitized.Apply.OperationTimeout = defaults.Apply.OperationTimeout
	}
	if sanitized.Apply.Concurrency <= 0 {
		sanitized.Apply.Concurrency = defaults.Apply.Concurrency
	}
	if len(sanitized.Report.Format) == 0 {
		sanitized.Report.Format = defaults.Report.Format
	}
	return sanitized
}
