package gateway

import (
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/shopspring/decimal"

	"github.com/soulseer/settlement/internal/models"
)

// Pacs008Builder renders payout transfers as pacs.008.001.08 messages.
type Pacs008Builder struct {
	debtorName string
	debtorBIC  string
	now        func() time.Time
}

func NewPacs008Builder(debtorName, debtorBIC string) *Pacs008Builder {
	return &Pacs008Builder{debtorName: debtorName, debtorBIC: debtorBIC, now: time.Now}
}

// Build creates a single-transaction FIToFICustomerCreditTransfer. The payout
// request id travels as instruction, transaction and end-to-end id so the
// gateway can deduplicate retries.
func (b *Pacs008Builder) Build(req TransferRequest) *pacs_v08.FIToFICustomerCreditTransferV08 {
	msgID := uuid.New().String()
	creDtTm := b.now()
	settlementDate := creDtTm
	amount := pacs_v08.ActiveCurrencyAndAmount{
		Ccy:   common.ActiveCurrencyCode(req.Currency),
		Value: decimal.New(req.Amount, -models.MinorUnits).InexactFloat64(),
	}
	ref := common.Max35Text(req.IdempotencyKey)

	return &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:             common.Max35Text(msgID),
			CreDtTm:           common.ISODateTime(creDtTm),
			NbOfTxs:           "1",
			TtlIntrBkSttlmAmt: &amount,
			IntrBkSttlmDt:     (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &ref,
					EndToEndId: ref,
					TxId:       &ref,
				},
				IntrBkSttlmAmt: amount,
				IntrBkSttlmDt:  (*common.ISODate)(&settlementDate),
				ChrgBr:         "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(b.debtorBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(b.debtorName)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(req.AccountID),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(req.Destination)}[0],
				},
			},
		},
	}
}

// ToXML renders an ISO 20022 document with the XML header.
func ToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
