// Package industry holds the static classification of indicator codes into
// thematic industries.
package industry

import (
	"sort"
	"sync"

	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// General is the catch-all industry for indicators with no classification.
const General = "general"

// Order is the canonical industry order. When a code is listed under several
// industries, the one declared later in Order wins.
var Order = []string{
	"food",
	"ict",
	"infrastructure",
	"biotech",
	"medtech",
	"mem",
	"energy",
	"climate",
	"context",
	"innovation",
	"finance",
	"trade",
}

// Table maps industry -> source -> native indicator codes.
var Table = map[string]map[models.Source][]string{
	"food": {
		models.SourceWorldBank: {
			"AG.LND.AGRI.ZS",
			"AG.PRD.FOOD.XD",
			"AG.YLD.CREL.KG",
			"AG.CON.FERT.ZS",
			"NV.AGR.TOTL.ZS",
			"SL.AGR.EMPL.ZS",
			"TM.VAL.FOOD.ZS.UN",
		},
	},
	"ict": {
		models.SourceWorldBank: {
			"IT.NET.USER.ZS",
			"IT.CEL.SETS.P2",
			"IT.NET.BBND.P2",
			"TX.VAL.ICTG.ZS.UN",
			"TM.VAL.ICTG.ZS.UN",
			"IT.NET.SECR.P6",
		},
	},
	"infrastructure": {
		models.SourceWorldBank: {
			"IS.ROD.DNST.K2",
			"IS.ROD.PAVE.ZS",
			"IS.RRS.TOTL.KM",
			"IS.AIR.PSGR",
			"EG.ELC.ACCS.ZS",
			"EG.ELC.PROD.KH",
			"SH.H2O.BASW.ZS",
		},
	},
	"biotech": {
		models.SourceWorldBank: {
			"SH.XPD.CHEX.GD.ZS",
			"SH.XPD.CHEX.PC.CD",
			"SP.DYN.LE00.IN",
			"SH.MED.BEDS.ZS",
			"SH.MED.PHYS.ZS",
			"GB.XPD.RSDV.GD.ZS",
			"IP.PAT.RESD",
			"TX.VAL.TECH.CD",
		},
	},
	"medtech": {
		models.SourceWorldBank: {
			"SH.XPD.CHEX.GD.ZS",
			"SH.MED.BEDS.ZS",
			"TX.VAL.TECH.CD",
			"GB.XPD.RSDV.GD.ZS",
			"IP.PAT.RESD",
			"NV.IND.MANF.ZS",
			"TX.VAL.MANF.ZS.UN",
		},
	},
	"mem": {
		models.SourceWorldBank: {
			"TX.VAL.TECH.CD",
			"NV.IND.MANF.ZS",
			"GB.XPD.RSDV.GD.ZS",
			"IP.PAT.RESD",
			"TX.VAL.MANF.ZS.UN",
			"NV.IND.TOTL.ZS",
			"SL.IND.EMPL.ZS",
		},
	},
	"energy": {
		models.SourceWorldBank: {
			"EG.ELC.ACCS.ZS",
			"EG.ELC.RNEW.ZS",
			"EG.ELC.COAL.ZS",
			"EG.ELC.NGAS.ZS",
			"EG.ELC.NUCL.ZS",
			"EG.ELC.HYRO.ZS",
			"EG.FEC.RNEW.ZS",
			"EG.USE.PCAP.KG.OE",
			"EG.GDP.PUSE.KO.PP",
			"EG.CFT.ACCS.ZS",
			"EG.ELC.LOSS.ZS",
			"EG.IMP.CONS.ZS",
		},
	},
	"climate": {
		models.SourceWorldBank: {
			"EN.ATM.CO2E.PC",
			"EN.ATM.CO2E.KT",
			"EN.ATM.METH.KT.CE",
			"EN.ATM.NOXE.KT.CE",
			"EN.ATM.PM25.MC.M3",
			"EN.CLC.MDAT.ZS",
			"EN.POP.EL5M.ZS",
			"EN.POP.DNST",
			"EN.FSH.THRD.NO",
			"EN.MAM.THRD.NO",
			"EN.BIR.THRD.NO",
			"AG.LND.FRST.ZS",
		},
	},
	"context": {
		models.SourceWorldBank: {
			// economic foundation
			"NY.GDP.MKTP.KD.ZG",
			"NY.GDP.PCAP.KD",
			"NY.GDP.PCAP.PP.KD",
			"FP.CPI.TOTL.ZG",
			"NE.TRD.GNFS.ZS",
			// human capital
			"SE.TER.ENRR",
			"SE.TER.ENRR.FE",
			"SE.TER.ENRR.MA",
			"SE.ADT.LITR.ZS",
			"SL.UEM.TOTL.ZS",
			// business environment
			"IC.BUS.EASE.XQ",
			"IC.REG.DURS",
			"IC.REG.COST.PC.ZS",
			"IC.TAX.TOTL.CP.ZS",
			// institutions
			"IQ.CPA.PROP.XQ",
			"IQ.CPA.TRAN.XQ",
			"IQ.CPA.FINS.XQ",
			"IQ.CPA.DEBT.XQ",
			// social
			"SI.POV.DDAY",
			"SI.POV.GINI",
			"SP.URB.TOTL.IN.ZS",
			"SP.POP.GROW",
			"SP.POP.65UP.TO.ZS",
		},
	},
	"innovation": {
		models.SourceWorldBank: {
			"GB.XPD.RSDV.GD.ZS",
			"IP.PAT.RESD",
			"IP.PAT.NRES",
			"IP.TMK.RESD",
			"IP.TMK.NRES",
			"IP.IDS.RSCT",
			"IP.IDS.NRCT",
			"IP.JRN.ARTC.SC",
			"TX.VAL.TECH.MF.ZS",
			"SP.POP.SCIE.RD.P6",
			"BX.GSR.ROYL.CD",
			"BM.GSR.ROYL.CD",
		},
	},
	"finance": {
		models.SourceWorldBank: {
			"FS.AST.DOMS.GD.ZS",
			"FS.AST.PRVT.GD.ZS",
			"FD.AST.PRVT.GD.ZS",
			"FR.INR.LEND",
			"FR.INR.DPST",
			"FR.INR.RINR",
			"BX.KLT.DINV.WD.GD.ZS",
			"BX.PEF.TOTL.CD.WD",
			"CM.MKT.LCAP.GD.ZS",
			"CM.MKT.TRAD.GD.ZS",
			"GFDD.DI.14",
			"GFDD.SI.01",
		},
	},
	"trade": {
		models.SourceWorldBank: {
			"NE.EXP.GNFS.ZS",
			"NE.IMP.GNFS.ZS",
			"NE.TRD.GNFS.ZS",
			"BX.GSR.GNFS.CD",
			"BM.GSR.GNFS.CD",
			"BN.CAB.XOKA.GD.ZS",
			"TX.VAL.MANF.ZS.UN",
			"TM.VAL.MANF.ZS.UN",
			"TX.VAL.FUEL.ZS.UN",
			"TM.VAL.FUEL.ZS.UN",
			"TX.VAL.MMTL.ZS.UN",
			"TM.VAL.MMTL.ZS.UN",
		},
	},
}

var (
	reverseOnce sync.Once
	reverse     map[string]string
	rank        map[string]int
)

func buildReverse() {
	rank = make(map[string]int, len(Order))
	for i, name := range Order {
		rank[name] = i
	}
	reverse = make(map[string]string)
	for _, name := range Order {
		for _, codes := range Table[name] {
			for _, code := range codes {
				reverse[code] = name
			}
		}
	}
}

// Classify returns the industry for a native indicator code.
func Classify(code string) (string, bool) {
	reverseOnce.Do(buildReverse)
	name, ok := reverse[code]
	return name, ok
}

// Prefer returns whichever of two industries is declared later in Order.
// Unknown industries rank below every known one.
func Prefer(a, b string) string {
	reverseOnce.Do(buildReverse)
	ra, okA := rank[a]
	rb, okB := rank[b]
	switch {
	case !okA && !okB:
		if b > a {
			return b
		}
		return a
	case !okA:
		return b
	case !okB:
		return a
	case rb >= ra:
		return b
	}
	return a
}

// Known reports whether name is one of the classified industries.
func Known(name string) bool {
	reverseOnce.Do(buildReverse)
	_, ok := rank[name]
	return ok
}

// Codes returns the codes listed for an industry and source.
func Codes(industry string, src models.Source) []string {
	return append([]string(nil), Table[industry][src]...)
}

// AllCodes returns every distinct code for src, sorted.
func AllCodes(src models.Source) []string {
	seen := make(map[string]struct{})
	for _, sources := range Table {
		for _, code := range sources[src] {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
