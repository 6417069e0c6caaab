// Package export renders payment schedules as XML for the bank's cheque
// deposit batch and reads such files back.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/installment-service/internal/installment"
	"github.com/Dan9191/installment-service/internal/models"
)

const dateLayout = "2006-01-02"

// ScheduleXML builds the schedule document for a registration.
func ScheduleXML(reg *models.Registration, rows []models.PaymentSchedule) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("PaymentSchedule")
	root.CreateAttr("registration", strconv.FormatInt(reg.ID, 10))
	root.CreateAttr("child", reg.ChildName)
	root.CreateAttr("method", string(reg.PaymentMethod))
	root.CreateAttr("total", reg.FinalPrice().StringFixed(installment.Precision))

	for _, row := range rows {
		el := root.CreateElement("Installment")
		el.CreateAttr("no", strconv.Itoa(row.InstallmentNo))
		el.CreateAttr("state", string(row.State))
		el.CreateElement("Amount").SetText(row.Amount.StringFixed(installment.Precision))
		el.CreateElement("DueDate").SetText(row.DueDate.Format(dateLayout))
		if row.InvoiceRef != "" {
			el.CreateElement("InvoiceRef").SetText(row.InvoiceRef)
		}
		if row.Cheque != nil {
			ch := el.CreateElement("Cheque")
			ch.CreateElement("Number").SetText(row.Cheque.Number)
			ch.CreateElement("Bank").SetText(row.Cheque.BankName)
			ch.CreateElement("Date").SetText(row.Cheque.Date.Format(dateLayout))
		}
	}

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to write schedule xml: %w", err)
	}
	return out, nil
}

// ParseScheduleXML reads the installments of a schedule document.
func ParseScheduleXML(data []byte) ([]models.PaymentSchedule, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.SelectElement("PaymentSchedule")
	if root == nil {
		return nil, fmt.Errorf("PaymentSchedule element not found in XML")
	}
	regID, err := strconv.ParseInt(root.SelectAttrValue("registration", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid registration id: %w", err)
	}

	var rows []models.PaymentSchedule
	for _, el := range root.FindElements("./Installment") {
		no, err := strconv.Atoi(el.SelectAttrValue("no", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid installment number: %w", err)
		}
		row := models.PaymentSchedule{
			RegistrationID: regID,
			InstallmentNo:  no,
			PaymentMethod:  models.PaymentMethod(root.SelectAttrValue("method", "")),
			State:          models.InstallmentState(el.SelectAttrValue("state", string(models.InstallmentDraft))),
			InvoiceRef:     childText(el, "InvoiceRef"),
		}
		if row.Amount, err = decimal.NewFromString(childText(el, "Amount")); err != nil {
			return nil, fmt.Errorf("installment %d: invalid amount: %w", no, err)
		}
		if row.DueDate, err = time.Parse(dateLayout, childText(el, "DueDate")); err != nil {
			return nil, fmt.Errorf("installment %d: invalid due date: %w", no, err)
		}
		if ch := el.SelectElement("Cheque"); ch != nil {
			date, err := time.Parse(dateLayout, childText(ch, "Date"))
			if err != nil {
				return nil, fmt.Errorf("installment %d: invalid cheque date: %w", no, err)
			}
			row.Cheque = &models.Cheque{
				Number:   childText(ch, "Number"),
				BankName: childText(ch, "Bank"),
				Date:     date,
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no installments found in XML")
	}
	return rows, nil
}

func childText(el *etree.Element, tag string) string {
	if c := el.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}
