package budget

import (
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/util"
)

var (
	municipalMarkers = []string{
		"prefeitura", "prefeito", "vereador", "bairro", "rua", "asfalto",
		"coleta de lixo", "posto de saude", "escola municipal", "guarda municipal",
	}
	stateMarkers = []string{
		"governador", "deputado estadual", "policia militar", "pmesp",
		"rodovia estadual", "fatec", "etec", "secretaria de estado",
	}
)

// DetectSphere infers the jurisdiction a promise refers to. Municipal
// markers win over state markers; the default is FEDERAL.
func DetectSphere(text string) model.Sphere {
	folded := util.Fold(text)
	if _, ok := util.ContainsAny(folded, municipalMarkers); ok {
		return model.SphereMunicipal
	}
	if _, ok := util.ContainsAny(folded, stateMarkers); ok {
		return model.SphereState
	}
	return model.SphereFederal
}
