package extract

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/portfolio-cli/internal/model"
)

// BuildHolding constructs the holding variant for asset from classified
// fields. The model constructors enforce the quantity invariant again.
func BuildHolding(asset model.AssetType, account model.AccountType, f Fields) (model.Holding, error) {
	p := model.Position{
		TickerCode:       f.TickerCode,
		Name:             f.Name,
		Quantity:         f.Quantity,
		AcquisitionPrice: f.AcquisitionPrice,
		CurrentPrice:     f.CurrentPrice,
		AccountType:      account,
	}

	switch asset {
	case model.AssetTypeStock:
		return model.NewStock(p, model.StockDetails{})
	case model.AssetTypeMutualFund:
		nisa := account.IsNISA()
		return model.NewMutualFund(p, model.FundDetails{IsNISA: &nisa})
	case model.AssetTypeForeignStock:
		if f.Foreign == nil {
			return model.Holding{}, eris.New("extract: foreign holding without listing details")
		}
		return model.NewForeignStock(p, *f.Foreign)
	}
	return model.Holding{}, eris.Errorf("extract: unsupported asset type %q", asset)
}
