package whatsapp

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/RubensDuarte2025/Julius-rmd/internal/catalog"
	"github.com/RubensDuarte2025/Julius-rmd/internal/models"
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// formatMoney renders an amount the way Brazilian customers read it, e.g.
// "R$ 1.234,50".
func formatMoney(amount models.Money) string {
	cents := amount.Cents()
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, printer.Sprintf("%d", cents/100), cents%100)
}

const (
	initialOptions = "Digite:\n1️⃣ Ver Cardápio e Fazer Pedido 🍕\n2️⃣ Falar com um Atendente 💬"

	msgHandoff         = "Um momento, vou te transferir para um de nossos atendentes. Se precisar recomeçar, digite 'cancelar'."
	msgInvalidInitial  = "Opção inválida. " + initialOptions + "\nOu 'cancelar' para recomeçar."
	msgCartActions     = "Digite 'C', 'CAT', 'F', ou 'R'."
	msgInvalidCart     = "Opção inválida. Digite 'C' para continuar comprando, 'CAT' para categorias, 'F' para finalizar, ou 'R' para remover."
	msgCartAlreadyGone = "Seu carrinho já está vazio.\nDigite 'C' ou 'CAT' para adicionar itens."
	msgInvalidConfirm  = "Opção inválida. Digite 'PIX' para confirmar ou 'X' para cancelar."
	msgPaymentThanks   = "Obrigado por informar o pagamento! Seu pedido foi enviado para a cozinha e em breve um de nossos atendentes " +
		"irá verificar e confirmar os detalhes. Se precisar de algo mais, digite 'cancelar' para recomeçar."
	msgAwaitingPayment = "Aguardando sua confirmação de pagamento (envie 'PAGO') ou comprovante. " +
		"Se preferir, digite 'cancelar' para reiniciar o atendimento."
	msgUnknownCategory = "Categoria não encontrada ou sem produtos. Digite 'V' para ver as categorias."
	msgInternalError   = "Ocorreu um erro interno. Por favor, tente novamente mais tarde ou contate o suporte."
)

func (e *Engine) welcome() string {
	return fmt.Sprintf("Olá! Bem-vindo à %s! 😊\n%s", e.cfg.RestaurantName, initialOptions)
}

func (e *Engine) categoriesText() string {
	lines := []string{"Categorias:"}
	for _, category := range e.menu.Categories() {
		lines = append(lines, fmt.Sprintf("%s. %s", category.Key, category.Name))
	}
	lines = append(lines, "\nDigite o número da categoria ou 'V' para voltar ao menu inicial.")
	return strings.Join(lines, "\n")
}

func productsText(category catalog.Category) string {
	if len(category.Products) == 0 {
		return msgUnknownCategory
	}
	lines := []string{category.Name + ":"}
	for i, product := range category.Products {
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, product.Name, formatMoney(product.Price)))
	}
	lines = append(lines, "\nDigite o número do produto para adicionar ou 'V' para voltar às categorias.")
	return strings.Join(lines, "\n")
}

func addedText(product catalog.Product, category catalog.Category, cart models.Cart) string {
	return fmt.Sprintf("'%s' adicionado! Seu carrinho tem %d item(ns), totalizando %s.\n"+
		"Digite:\n"+
		"'C' para continuar comprando (na categoria '%s')\n"+
		"'CAT' para ver outras categorias\n"+
		"'F' para finalizar o pedido\n"+
		"'R' para remover o último item.",
		product.Name, cart.Len(), formatMoney(cart.Total()), category.Name)
}

func cartText(cart models.Cart) string {
	if cart.Empty() {
		return "Seu carrinho está vazio."
	}
	lines := []string{"Seu pedido atual:"}
	for i, line := range cart.Lines() {
		lines = append(lines, fmt.Sprintf("%d. %dx %s - %s cada", i+1, line.Quantity, line.Name, formatMoney(line.UnitPrice)))
	}
	return strings.Join(lines, "\n")
}

func confirmText(cart models.Cart) string {
	return fmt.Sprintf("%s\n\nTOTAL DO PEDIDO: %s\n\n"+
		"Para confirmar e pagar com PIX, digite 'PIX'.\n"+
		"Para cancelar este pedido, digite 'X'.",
		cartText(cart), formatMoney(cart.Total()))
}

func (e *Engine) pixText(cart models.Cart) string {
	return fmt.Sprintf("Ótimo! Seu pedido foi registrado e aguarda pagamento.\n"+
		"Pague com a chave PIX: %s\n"+
		"Valor total: %s\n\n"+
		"IMPORTANTE: Após o pagamento, por favor, envie 'PAGO' ou o comprovante para este chat "+
		"para que um atendente possa confirmar e processar seu pedido.\n\n"+
		"Obrigado pela preferência!",
		e.cfg.PixKey, formatMoney(cart.Total()))
}

func removedText(cart models.Cart) string {
	return fmt.Sprintf("Último item removido. Seu carrinho tem %d item(ns), totalizando %s.\n%s",
		cart.Len(), formatMoney(cart.Total()), msgCartActions)
}
