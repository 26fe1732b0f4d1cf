package models

import (
	"fmt"
)

const (
	MeanName               = "mean"
	RandomForestName       = "random_forest"
	LinearRegressionName   = "linear_regression"
	PCAName                = "pca"
	GradientBoostedName    = "gradient_boosted"
	GradientBoostedPCAName = "gradient_boosted_pca"
	SeasonalName           = "seasonal"
)

// Names lists every strategy New can build.
func Names() []string {
	return []string{
		MeanName,
		RandomForestName,
		LinearRegressionName,
		PCAName,
		GradientBoostedName,
		GradientBoostedPCAName,
		SeasonalName,
	}
}

// New builds a strategy by name with its default strategy options.
func New(name string, opt *Options) (Model, error) {
	switch name {
	case MeanName:
		return NewMeanProfile(opt), nil
	case RandomForestName:
		return build(NewRandomForest(opt, nil))
	case LinearRegressionName:
		return build(NewLinearRegression(opt, nil))
	case PCAName:
		return NewPCAReconstruction(opt, nil), nil
	case GradientBoostedName:
		return build(NewGradientBoosted(opt, nil))
	case GradientBoostedPCAName:
		return build(NewGradientBoosted(opt, NewDefaultGradientBoostedPCAOptions()))
	case SeasonalName:
		return build(NewSeasonal(opt, nil))
	default:
		return nil, fmt.Errorf("%q, %w", name, ErrUnknownModel)
	}
}

// build avoids returning a typed nil inside a non nil Model on error.
func build[M Model](m M, err error) (Model, error) {
	if err != nil {
		return nil, err
	}
	return m, nil
}
